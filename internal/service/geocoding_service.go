package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/therapy-match-api/pkg/geo"
)

// Geocode sources reported to metrics.
const (
	GeocodeSourceStatic = "static"
	GeocodeSourceCache  = "cache"
	GeocodeSourceRemote = "remote"
	GeocodeSourceNone   = "none"
)

// Geocoder resolves a free-text location to coordinates. A nil point with a
// nil error means the location is unknown.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (*geo.Point, error)
}

// GeocodingConfig configures the remote lookup.
type GeocodingConfig struct {
	Enabled           bool
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// GeocodingService answers from a static table of Austrian places first, then
// the cache, then Nominatim. Remote calls share one limiter per instance.
type GeocodingService struct {
	client   *resty.Client
	limiter  *rate.Limiter
	cache    *CacheService
	cacheTTL time.Duration
	enabled  bool
	metrics  *MetricsService
	logger   *zap.Logger
}

type cachedPoint struct {
	Found bool    `json:"found"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewGeocodingService constructs a geocoder.
func NewGeocodingService(cfg GeocodingConfig, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *GeocodingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * 24 * time.Hour
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)

	return &GeocodingService{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		enabled:  cfg.Enabled && cfg.BaseURL != "",
		metrics:  metrics,
		logger:   logger,
	}
}

// Lookup resolves query. Remote failures are logged and reported as unknown
// so that search degrades instead of failing.
func (s *GeocodingService) Lookup(ctx context.Context, query string) (*geo.Point, error) {
	key := normaliseLocation(query)
	if key == "" {
		return nil, nil
	}

	if p, ok := staticLookup(key); ok {
		s.metrics.RecordGeocodeLookup(GeocodeSourceStatic)
		return &p, nil
	}

	cacheKey := CacheKey("geocode", key)
	var cached cachedPoint
	if s.cache.Get(ctx, cacheKey, &cached) {
		s.metrics.RecordGeocodeLookup(GeocodeSourceCache)
		if !cached.Found {
			return nil, nil
		}
		return &geo.Point{Lat: cached.Lat, Lng: cached.Lng}, nil
	}

	if !s.enabled {
		s.metrics.RecordGeocodeLookup(GeocodeSourceNone)
		return nil, nil
	}

	point, err := s.remote(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.metrics.RecordGeocodeLookup(GeocodeSourceNone)
		s.logger.Warn("geocode lookup failed", zap.String("query", key), zap.Error(err))
		return nil, nil
	}

	entry := cachedPoint{}
	if point != nil {
		entry = cachedPoint{Found: true, Lat: point.Lat, Lng: point.Lng}
	}
	s.cache.Set(ctx, cacheKey, entry, s.cacheTTL)
	s.metrics.RecordGeocodeLookup(GeocodeSourceRemote)
	return point, nil
}

func (s *GeocodingService) remote(ctx context.Context, query string) (*geo.Point, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var places []nominatimPlace
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":       "json",
			"q":            query,
			"countrycodes": "at",
			"limit":        "1",
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode())
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", places[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", places[0].Lon, err)
	}
	point := geo.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		return nil, fmt.Errorf("nominatim returned invalid point %v", point)
	}
	return &point, nil
}

// austrianPlaces covers the state capitals and larger towns.
var austrianPlaces = map[string]geo.Point{
	"wien":            {Lat: 48.2082, Lng: 16.3738},
	"vienna":          {Lat: 48.2082, Lng: 16.3738},
	"graz":            {Lat: 47.0707, Lng: 15.4395},
	"linz":            {Lat: 48.3069, Lng: 14.2858},
	"salzburg":        {Lat: 47.8095, Lng: 13.0550},
	"innsbruck":       {Lat: 47.2692, Lng: 11.4041},
	"klagenfurt":      {Lat: 46.6247, Lng: 14.3053},
	"villach":         {Lat: 46.6111, Lng: 13.8558},
	"wels":            {Lat: 48.1575, Lng: 14.0289},
	"st. pölten":      {Lat: 48.2047, Lng: 15.6256},
	"sankt pölten":    {Lat: 48.2047, Lng: 15.6256},
	"dornbirn":        {Lat: 47.4125, Lng: 9.7417},
	"wiener neustadt": {Lat: 47.8151, Lng: 16.2465},
	"steyr":           {Lat: 48.0427, Lng: 14.4213},
	"feldkirch":       {Lat: 47.2370, Lng: 9.5980},
	"bregenz":         {Lat: 47.5031, Lng: 9.7471},
	"leoben":          {Lat: 47.3765, Lng: 15.0914},
	"krems":           {Lat: 48.4092, Lng: 15.6142},
	"baden":           {Lat: 48.0069, Lng: 16.2308},
	"klosterneuburg":  {Lat: 48.3053, Lng: 16.3256},
	"eisenstadt":      {Lat: 47.8456, Lng: 16.5233},
	"mödling":         {Lat: 48.0856, Lng: 16.2831},
}

// postalCodes maps the main delivery areas of larger towns.
var postalCodes = map[string]string{
	"8010": "graz",
	"8020": "graz",
	"4020": "linz",
	"5020": "salzburg",
	"6020": "innsbruck",
	"9020": "klagenfurt",
	"9500": "villach",
	"4600": "wels",
	"3100": "st. pölten",
	"6850": "dornbirn",
	"2700": "wiener neustadt",
	"4400": "steyr",
	"6800": "feldkirch",
	"6900": "bregenz",
	"7000": "eisenstadt",
	"2500": "baden",
	"3500": "krems",
	"2340": "mödling",
}

func staticLookup(key string) (geo.Point, bool) {
	if p, ok := austrianPlaces[key]; ok {
		return p, true
	}
	if len(key) == 4 && isDigits(key) {
		// Every Viennese postal code starts with 1.
		if key[0] == '1' {
			return austrianPlaces["wien"], true
		}
		if city, ok := postalCodes[key]; ok {
			return austrianPlaces[city], true
		}
		return geo.Point{}, false
	}
	// "1070 Wien" or "Wien 1070".
	for _, part := range strings.Fields(key) {
		if p, ok := austrianPlaces[part]; ok {
			return p, true
		}
		if len(part) == 4 && isDigits(part) {
			if p, ok := staticLookup(part); ok {
				return p, true
			}
		}
	}
	return geo.Point{}, false
}

func normaliseLocation(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, suffix := range []string{", österreich", ", austria", ", at"} {
		q = strings.TrimSuffix(q, suffix)
	}
	q = strings.ReplaceAll(q, ",", " ")
	return strings.Join(strings.Fields(q), " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

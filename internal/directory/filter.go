// Package directory filters, sorts and summarises therapist listings for
// the public search.
package directory

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/therapy-match-api/internal/availability"
	"github.com/noah-isme/therapy-match-api/internal/models"
	"github.com/noah-isme/therapy-match-api/pkg/geo"
)

// SortKey selects the ordering of search results.
type SortKey string

const (
	SortRelevance    SortKey = "relevance"
	SortDistance     SortKey = "distance"
	SortPriceAsc     SortKey = "price_asc"
	SortPriceDesc    SortKey = "price_desc"
	SortExperience   SortKey = "experience"
	SortRating       SortKey = "rating"
	SortAvailability SortKey = "availability"
)

// DefaultRadiusKm applies when nearby search is requested without a radius.
const DefaultRadiusKm = 25.0

// Filter is the search state. Zero values never exclude anything.
type Filter struct {
	Query              string     `form:"q" json:"q,omitempty"`
	Formats            []string   `form:"format" json:"formats,omitempty" validate:"dive,oneof=online praesenz hybrid"`
	Specializations    []string   `form:"specialization" json:"specializations,omitempty"`
	NearbyOnly         bool       `form:"nearby" json:"nearby,omitempty"`
	RadiusKm           float64    `form:"radius" json:"radius,omitempty" validate:"gte=0,lte=500"`
	Location           string     `form:"location" json:"location,omitempty"`
	Origin             *geo.Point `form:"-" json:"origin,omitempty"`
	Languages          []string   `form:"language" json:"languages,omitempty"`
	PriceMin           *int       `form:"price_min" json:"priceMin,omitempty" validate:"omitempty,gte=0"`
	PriceMax           *int       `form:"price_max" json:"priceMax,omitempty" validate:"omitempty,gte=0"`
	InsuranceOnly      bool       `form:"insurance" json:"insurance,omitempty"`
	InsuranceProviders []string   `form:"insurance_provider" json:"insuranceProviders,omitempty"`
	Gender             string     `form:"gender" json:"gender,omitempty"`
	Sort               SortKey    `form:"sort" json:"sort,omitempty" validate:"omitempty,oneof=relevance distance price_asc price_desc experience rating availability"`
}

// Item is a profile that passed the filter, with its derived search data.
type Item struct {
	Profile         *models.TherapistProfile `json:"profile"`
	Availability    availability.Meta        `json:"availability"`
	DistanceKm      *float64                 `json:"distanceKm,omitempty"`
	ExperienceYears int                      `json:"experienceYears"`
}

// Facets summarise the unfiltered input set.
type Facets struct {
	Specializations    []string `json:"specializations"`
	Languages          []string `json:"languages"`
	InsuranceProviders []string `json:"insuranceProviders"`
	PriceMin           *int     `json:"priceMin,omitempty"`
	PriceMax           *int     `json:"priceMax,omitempty"`
}

// Result is the filtered, sorted listing and its facets.
type Result struct {
	Items  []Item `json:"items"`
	Facets Facets `json:"facets"`
	Total  int    `json:"total"`
}

// Apply filters profiles by f, sorts the matches and computes facets over the
// full input. now anchors availability ranking and experience parsing.
func Apply(profiles []models.TherapistProfile, f Filter, now time.Time) Result {
	items := make([]Item, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		item := newItem(p, f.Origin, now)
		if !matches(item, f) {
			continue
		}
		items = append(items, item)
	}

	sortItems(items, f.Sort)

	return Result{
		Items:  items,
		Facets: BuildFacets(profiles),
		Total:  len(items),
	}
}

func newItem(p *models.TherapistProfile, origin *geo.Point, now time.Time) Item {
	note := ""
	if p.AvailabilityNote != nil {
		note = *p.AvailabilityNote
	}
	item := Item{
		Profile:      p,
		Availability: availability.Rank(note, p.AcceptingClients, now),
	}
	if p.Experience != nil {
		item.ExperienceYears = ParseExperience(*p.Experience, now)
	}
	if origin != nil {
		if lat, lng, ok := p.Coordinates(); ok {
			d := geo.DistanceKm(*origin, geo.Point{Lat: lat, Lng: lng})
			item.DistanceKm = &d
		}
	}
	return item
}

func matches(item Item, f Filter) bool {
	p := item.Profile
	return matchesQuery(p, f.Query) &&
		matchesFormats(p, f.Formats) &&
		anyFold(p.Specialties, f.Specializations) &&
		matchesNearby(item, f) &&
		anyFold(p.Languages, f.Languages) &&
		matchesPrice(p, f.PriceMin, f.PriceMax) &&
		matchesInsurance(p, f.InsuranceOnly, f.InsuranceProviders) &&
		matchesGender(p, f.Gender)
}

func matchesQuery(p *models.TherapistProfile, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	fields := []string{p.FullName, p.City}
	for _, ptr := range []*string{p.Title, p.PostalCode, p.Bio} {
		if ptr != nil {
			fields = append(fields, *ptr)
		}
	}
	fields = append(fields, p.Specialties...)
	fields = append(fields, p.Modalities...)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func matchesFormats(p *models.TherapistProfile, formats []string) bool {
	if len(formats) == 0 {
		return true
	}
	for _, raw := range formats {
		f := models.Format(strings.ToLower(raw))
		if p.OffersFormat(f) {
			return true
		}
		if f != models.FormatHybrid && p.OffersFormat(models.FormatHybrid) {
			return true
		}
	}
	return false
}

// matchesNearby keeps online-only practices regardless of location and drops
// any other profile without coordinates.
func matchesNearby(item Item, f Filter) bool {
	if !f.NearbyOnly || f.Origin == nil {
		return true
	}
	if item.Profile.OnlineOnly() {
		return true
	}
	if item.DistanceKm == nil {
		return false
	}
	radius := f.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	return *item.DistanceKm <= radius
}

// matchesPrice tests interval overlap between the filter range in whole euros
// and the profile range in cents.
func matchesPrice(p *models.TherapistProfile, minEUR, maxEUR *int) bool {
	if minEUR == nil && maxEUR == nil {
		return true
	}
	lo, hi, ok := priceRange(p)
	if !ok {
		return false
	}
	if minEUR != nil && hi < *minEUR*100 {
		return false
	}
	if maxEUR != nil && lo > *maxEUR*100 {
		return false
	}
	return true
}

func priceRange(p *models.TherapistProfile) (lo, hi int, ok bool) {
	switch {
	case p.PriceMinCents != nil && p.PriceMaxCents != nil:
		return *p.PriceMinCents, *p.PriceMaxCents, true
	case p.PriceMinCents != nil:
		return *p.PriceMinCents, *p.PriceMinCents, true
	case p.PriceMaxCents != nil:
		return *p.PriceMaxCents, *p.PriceMaxCents, true
	default:
		return 0, 0, false
	}
}

func matchesInsurance(p *models.TherapistProfile, required bool, providers []string) bool {
	if required && !p.AcceptsInsurance {
		return false
	}
	return anyFold(p.InsuranceProviders, providers)
}

func matchesGender(p *models.TherapistProfile, gender string) bool {
	gender = strings.TrimSpace(gender)
	if gender == "" {
		return true
	}
	return p.Gender != nil && strings.EqualFold(*p.Gender, gender)
}

// anyFold reports whether have shares an entry with want. An empty want matches.
func anyFold(have []string, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}

func sortItems(items []Item, key SortKey) {
	var less func(a, b Item) bool
	switch key {
	case SortDistance:
		less = func(a, b Item) bool { return lessMissingLast(a.DistanceKm, b.DistanceKm, false) }
	case SortPriceAsc:
		less = func(a, b Item) bool { return lessPrice(a, b, false) }
	case SortPriceDesc:
		less = func(a, b Item) bool { return lessPrice(a, b, true) }
	case SortExperience:
		less = func(a, b Item) bool { return a.ExperienceYears > b.ExperienceYears }
	case SortRating:
		less = func(a, b Item) bool { return lessMissingLast(a.Profile.Rating, b.Profile.Rating, true) }
	case SortAvailability:
		less = func(a, b Item) bool { return a.Availability.Rank < b.Availability.Rank }
	default:
		less = func(a, b Item) bool {
			av := a.Profile.Status == models.ProfileVerified
			bv := b.Profile.Status == models.ProfileVerified
			if av != bv {
				return av
			}
			return a.Availability.Rank < b.Availability.Rank
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func lessPrice(a, b Item, desc bool) bool {
	var ap, bp *float64
	if a.Profile.PriceMinCents != nil {
		v := float64(*a.Profile.PriceMinCents)
		ap = &v
	}
	if b.Profile.PriceMinCents != nil {
		v := float64(*b.Profile.PriceMinCents)
		bp = &v
	}
	return lessMissingLast(ap, bp, desc)
}

// lessMissingLast orders present values before nil ones.
func lessMissingLast(a, b *float64, desc bool) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	case desc:
		return *a > *b
	default:
		return *a < *b
	}
}

// BuildFacets collects the distinct values and price bounds of profiles.
func BuildFacets(profiles []models.TherapistProfile) Facets {
	specs := map[string]struct{}{}
	langs := map[string]struct{}{}
	insurers := map[string]struct{}{}
	lo, hi := math.MaxInt, math.MinInt

	for i := range profiles {
		p := &profiles[i]
		collect(specs, p.Specialties)
		collect(langs, p.Languages)
		collect(insurers, p.InsuranceProviders)
		if pmin, pmax, ok := priceRange(p); ok {
			if pmin < lo {
				lo = pmin
			}
			if pmax > hi {
				hi = pmax
			}
		}
	}

	facets := Facets{
		Specializations:    sortedKeys(specs),
		Languages:          sortedKeys(langs),
		InsuranceProviders: sortedKeys(insurers),
	}
	if lo <= hi {
		minEUR := lo / 100
		maxEUR := (hi + 99) / 100
		facets.PriceMin = &minEUR
		facets.PriceMax = &maxEUR
	}
	return facets
}

func collect(set map[string]struct{}, values []string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	yearsPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*(jahre|jahren|j\.|years?|yrs)`)
	sincePattern = regexp.MustCompile(`(?i)(seit|since)\s+((19|20)\d{2})`)
)

// ParseExperience extracts years of practice from free text such as
// "12 Jahre Erfahrung" or "seit 2010 tätig". Unparsable text yields 0.
func ParseExperience(text string, now time.Time) int {
	best := 0
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best = n
		}
	}
	for _, m := range sincePattern.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[2])
		if err != nil || year > now.Year() {
			continue
		}
		if n := now.Year() - year; n > best {
			best = n
		}
	}
	return best
}

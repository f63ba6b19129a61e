package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Directory DirectoryConfig
	Geocoder  GeocoderConfig
	Dossier   DossierConfig
	Matching  MatchingConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DirectoryConfig tunes the public therapist directory.
type DirectoryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// GeocoderConfig configures the network-backed coordinate lookup.
type GeocoderConfig struct {
	Enabled           bool
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// DossierConfig governs clinical summary sharing.
type DossierConfig struct {
	TTL             time.Duration
	EncryptionKey   string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	StorageDir      string
}

// MatchingConfig exposes the recommendation weights as tunable business parameters.
type MatchingConfig struct {
	Limit                   int
	DefaultRating           float64
	TherapistPreference     float64
	TherapistElevatedRisk   float64
	TherapistFormatMatch    float64
	TherapistShortTermSlots float64
	CoursePreference        float64
	CourseStructuredProgram float64
	CourseFormatMatch       float64
}

// EventsConfig controls the fire-and-forget event pipeline.
type EventsConfig struct {
	Stream     string
	Workers    int
	BufferSize int
	MaxRetries int
	MaxLen     int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Directory = DirectoryConfig{
		CacheEnabled: v.GetBool("DIRECTORY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), 5*time.Minute),
	}

	rps := v.GetFloat64("GEOCODER_REQUESTS_PER_SECOND")
	if rps <= 0 {
		rps = 1
	}
	cfg.Geocoder = GeocoderConfig{
		Enabled:           v.GetBool("GEOCODER_ENABLED"),
		BaseURL:           v.GetString("GEOCODER_BASE_URL"),
		UserAgent:         v.GetString("GEOCODER_USER_AGENT"),
		Timeout:           parseDuration(v.GetString("GEOCODER_TIMEOUT"), 5*time.Second),
		RequestsPerSecond: rps,
		CacheTTL:          parseDuration(v.GetString("GEOCODER_CACHE_TTL"), 30*24*time.Hour),
	}

	cfg.Dossier = DossierConfig{
		TTL:             parseDuration(v.GetString("DOSSIER_TTL"), 72*time.Hour),
		EncryptionKey:   v.GetString("DOSSIER_ENCRYPTION_KEY"),
		SignedURLSecret: v.GetString("DOSSIER_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOSSIER_SIGNED_URL_TTL"), 15*time.Minute),
		StorageDir:      v.GetString("DOSSIER_STORAGE_DIR"),
	}

	cfg.Matching = MatchingConfig{
		Limit:                   v.GetInt("MATCHING_LIMIT"),
		DefaultRating:           v.GetFloat64("MATCHING_DEFAULT_RATING"),
		TherapistPreference:     v.GetFloat64("MATCHING_THERAPIST_PREFERENCE_WEIGHT"),
		TherapistElevatedRisk:   v.GetFloat64("MATCHING_THERAPIST_RISK_WEIGHT"),
		TherapistFormatMatch:    v.GetFloat64("MATCHING_THERAPIST_FORMAT_WEIGHT"),
		TherapistShortTermSlots: v.GetFloat64("MATCHING_THERAPIST_SHORT_TERM_WEIGHT"),
		CoursePreference:        v.GetFloat64("MATCHING_COURSE_PREFERENCE_WEIGHT"),
		CourseStructuredProgram: v.GetFloat64("MATCHING_COURSE_STRUCTURED_WEIGHT"),
		CourseFormatMatch:       v.GetFloat64("MATCHING_COURSE_FORMAT_WEIGHT"),
	}

	cfg.Events = EventsConfig{
		Stream:     v.GetString("EVENTS_STREAM"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
		MaxLen:     v.GetInt64("EVENTS_STREAM_MAX_LEN"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "therapy_match")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "therapy-match-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DIRECTORY_CACHE_ENABLED", true)
	v.SetDefault("DIRECTORY_CACHE_TTL", "5m")

	v.SetDefault("GEOCODER_ENABLED", false)
	v.SetDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODER_USER_AGENT", "therapy-match-api/0.1")
	v.SetDefault("GEOCODER_TIMEOUT", "5s")
	v.SetDefault("GEOCODER_REQUESTS_PER_SECOND", 1)
	v.SetDefault("GEOCODER_CACHE_TTL", "720h")

	v.SetDefault("DOSSIER_TTL", "72h")
	v.SetDefault("DOSSIER_ENCRYPTION_KEY", "dev_dossier_key_change_me_32byte")
	v.SetDefault("DOSSIER_SIGNED_URL_SECRET", "dev_dossier_link_secret")
	v.SetDefault("DOSSIER_SIGNED_URL_TTL", "15m")
	v.SetDefault("DOSSIER_STORAGE_DIR", "./var/dossiers")

	v.SetDefault("MATCHING_LIMIT", 3)
	v.SetDefault("MATCHING_DEFAULT_RATING", 4.0)
	v.SetDefault("MATCHING_THERAPIST_PREFERENCE_WEIGHT", 1.5)
	v.SetDefault("MATCHING_THERAPIST_RISK_WEIGHT", 0.75)
	v.SetDefault("MATCHING_THERAPIST_FORMAT_WEIGHT", 1.0)
	v.SetDefault("MATCHING_THERAPIST_SHORT_TERM_WEIGHT", 0.5)
	v.SetDefault("MATCHING_COURSE_PREFERENCE_WEIGHT", 1.5)
	v.SetDefault("MATCHING_COURSE_STRUCTURED_WEIGHT", 0.75)
	v.SetDefault("MATCHING_COURSE_FORMAT_WEIGHT", 1.0)

	v.SetDefault("EVENTS_STREAM", "therapy-match:events")
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER_SIZE", 256)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_STREAM_MAX_LEN", 10000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// isMissingFile reports a .env that is absent; SetConfigFile surfaces that as a
// path error rather than viper.ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

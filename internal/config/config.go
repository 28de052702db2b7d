// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64

	// MapsAPIKey authenticates geocoding and directions calls. Required.
	MapsAPIKey string
	// MapsBaseURL is the provider root. Defaults to https://maps.googleapis.com.
	MapsBaseURL string
	// MapsRegion is the region hint used when a wizard does not send one.
	MapsRegion string
	// MapsRatePerSecond caps outbound provider calls. Defaults to 10.
	MapsRatePerSecond float64
	// LookupTimeout bounds each geocoding or routing call. Defaults to 9s.
	LookupTimeout time.Duration

	// RedisURL enables the geocode cache when set.
	RedisURL        string
	GeocodeCacheTTL time.Duration

	// AMQPURL enables trip-published events when set.
	AMQPURL      string
	AMQPExchange string

	// GazetteerPath is a name,lat,lng CSV of stopover places. Empty uses the
	// built-in list.
	GazetteerPath string
	CorridorKm    float64
	MaxStopovers  int

	// Location is the zone "today", weekends and peak hours are evaluated in.
	Location *time.Location
	Currency string

	// WizardIdleTimeout is how long an untouched wizard lives. Defaults to 30m.
	WizardIdleTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or
// any that could not be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		MapsBaseURL:   getEnv("MAPS_BASE_URL", "https://maps.googleapis.com"),
		MapsRegion:    os.Getenv("MAPS_REGION"),
		RedisURL:      os.Getenv("REDIS_URL"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "trips"),
		GazetteerPath: os.Getenv("GAZETTEER_PATH"),
		Currency:      getEnv("CURRENCY", "MAD"),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.MapsAPIKey = os.Getenv("MAPS_API_KEY")
	if cfg.MapsAPIKey == "" {
		missing = append(missing, "MAPS_API_KEY")
	}

	p := parser{invalid: &invalid}
	cfg.MaxBodyBytes = int64(p.integer("MAX_BODY_BYTES", 64<<10))
	cfg.MapsRatePerSecond = p.number("MAPS_RATE_PER_SECOND", 10)
	cfg.LookupTimeout = p.duration("LOOKUP_TIMEOUT", 9*time.Second)
	cfg.GeocodeCacheTTL = p.duration("GEOCODE_CACHE_TTL", 24*time.Hour)
	cfg.CorridorKm = p.number("CORRIDOR_KM", 10)
	cfg.MaxStopovers = p.integer("MAX_STOPOVERS", 8)
	cfg.WizardIdleTimeout = p.duration("WIZARD_IDLE_TIMEOUT", 30*time.Minute)

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		invalid = append(invalid, "TIMEZONE")
	}
	cfg.Location = loc

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parser reads typed optional variables, recording the names of those that
// are set but do not parse. Negative numbers are rejected too.
type parser struct {
	invalid *[]string
}

func (p parser) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*p.invalid = append(*p.invalid, key)
		return fallback
	}
	return n
}

func (p parser) number(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		*p.invalid = append(*p.invalid, key)
		return fallback
	}
	return f
}

func (p parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		*p.invalid = append(*p.invalid, key)
		return fallback
	}
	return d
}

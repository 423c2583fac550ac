// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default except the upstream
// endpoints and secrets, which stay empty and disable the feature they gate.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// Persistence. Empty DatabaseURL or RedisURL selects the in-memory
	// implementations, which is how tests and local development run.
	DatabaseURL string
	RedisURL    string

	// Comma-separated static allow-list of trusted backend client tokens.
	ClientTokens []string

	// Upstreams.
	IdentityProviderURL string
	PlaceRegistryURL    string
	PlaceRegistryKey    string
	UpstreamTimeout     time.Duration

	// Check-in rules.
	CheckinMaxDistance float64       // meters
	CheckinQuarantine  time.Duration // minimum gap between check-ins at one place

	// Verified user principals stay cached this long before the identity
	// provider is consulted again.
	AuthCacheTTL time.Duration

	// Audit sink. Empty KafkaBrokers keeps audit events in memory.
	KafkaBrokers []string
	AuditTopic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:                envString("TRAILMARK_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ClientTokens:        splitTokens(os.Getenv("API_CLIENT_TOKENS")),
		IdentityProviderURL: os.Getenv("IDENTITY_PROVIDER_URL"),
		PlaceRegistryURL:    os.Getenv("PLACE_REGISTRY_URL"),
		PlaceRegistryKey:    os.Getenv("PLACE_REGISTRY_KEY"),
		UpstreamTimeout:     envSeconds("UPSTREAM_TIMEOUT", 60*time.Second),
		CheckinMaxDistance:  envFloat("CHECKIN_MAX_DISTANCE", 200),
		CheckinQuarantine:   envSeconds("CHECKIN_QUARANTINE", 86400*time.Second),
		AuthCacheTTL:        envSeconds("AUTH_CACHE_TTL", 86400*time.Second),
		KafkaBrokers:        splitTokens(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:          envString("AUDIT_TOPIC", "trailmark.audit"),
	}
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// splitTokens parses a comma-separated list, dropping empty entries and
// surrounding whitespace.
func splitTokens(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

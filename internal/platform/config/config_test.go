package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, float64(200), cfg.CheckinMaxDistance)
	assert.Equal(t, 86400*time.Second, cfg.CheckinQuarantine)
	assert.Equal(t, 86400*time.Second, cfg.AuthCacheTTL)
	assert.Equal(t, 60*time.Second, cfg.UpstreamTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TRAILMARK_ADDR", ":9090")
	t.Setenv("API_CLIENT_TOKENS", "alpha, beta ,,gamma")
	t.Setenv("CHECKIN_MAX_DISTANCE", "350")
	t.Setenv("CHECKIN_QUARANTINE", "3600")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.ClientTokens)
	assert.Equal(t, float64(350), cfg.CheckinMaxDistance)
	assert.Equal(t, time.Hour, cfg.CheckinQuarantine)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestFromEnvBadNumbersFallBack(t *testing.T) {
	t.Setenv("CHECKIN_MAX_DISTANCE", "not-a-number")
	t.Setenv("CHECKIN_QUARANTINE", "-5")

	cfg := FromEnv()

	assert.Equal(t, float64(200), cfg.CheckinMaxDistance)
	assert.Equal(t, 86400*time.Second, cfg.CheckinQuarantine)
}

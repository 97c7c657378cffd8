package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "https://api.mfapi.in", cfg.MFAPIURL)
	assert.Equal(t, "147666", cfg.BenchmarkCode)
	assert.Equal(t, 0.06, cfg.RiskFreeRate)
	assert.Equal(t, 3, cfg.DefaultYears)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "none", cfg.EventBackend)
	assert.Equal(t, "guest", cfg.RabbitMQ.User)
	assert.Equal(t, 1, cfg.Kafka.Partitions)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RISK_FREE_RATE", "0.04")
	t.Setenv("FETCH_CONCURRENCY", "4")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("BENCHMARK_CODE", "120716")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 0.04, cfg.RiskFreeRate)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "120716", cfg.BenchmarkCode)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("EVENT_BACKEND", "carrier-pigeon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_KafkaNeedsBootstrap(t *testing.T) {
	t.Setenv("EVENT_BACKEND", "kafka")
	t.Setenv("KAFKA_BOOTSTRAPSERVERS", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("MF_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("MF_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("MF_TEST_MISSING", "fallback"))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "staging")
	t.Setenv("RATE_LIMIT_RPM", "240")
	t.Setenv("DATABASE_URL", "postgres://localhost/pointsguard")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, 240, cfg.RateLimitRPM)
	assert.Equal(t, "postgres://localhost/pointsguard", cfg.DatabaseURL)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel, "unset keys fall back to defaults")
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "RATE_LIMIT_RPM"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.Empty(t, cfg.DatabaseURL, "no database means in-memory store")
}

func TestLoad_BadRateLimitFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPM", "plenty")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
}

func TestValidate(t *testing.T) {
	base := Config{Port: "8080", Env: "development", RateLimitRPM: 120}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT must not be empty"},
		{"non-numeric port", func(c *Config) { c.Port = "eighty" }, "PORT must be numeric"},
		{"zero rate limit", func(c *Config) { c.RateLimitRPM = 0 }, "RATE_LIMIT_RPM must be positive"},
		{"production without database", func(c *Config) { c.Env = "production" }, "DATABASE_URL is required"},
		{"production with database", func(c *Config) {
			c.Env = "production"
			c.DatabaseURL = "postgres://localhost/pointsguard"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestEnvModes(t *testing.T) {
	dev := &Config{Env: "development"}
	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())

	prod := &Config{Env: "production"}
	assert.False(t, prod.IsDevelopment())
	assert.True(t, prod.IsProduction())

	staging := &Config{Env: "staging"}
	assert.False(t, staging.IsDevelopment())
	assert.False(t, staging.IsProduction())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PG_TEST_STR", "custom")
	t.Setenv("PG_TEST_INT", "42")
	t.Setenv("PG_TEST_BAD", "not_a_number")

	assert.Equal(t, "custom", envOr("PG_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", envOr("PG_TEST_MISSING", "fallback"))
	assert.Equal(t, 42, envOrInt("PG_TEST_INT", 9))
	assert.Equal(t, 9, envOrInt("PG_TEST_MISSING", 9))
	assert.Equal(t, 9, envOrInt("PG_TEST_BAD", 9))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      "postgres",
			DatabaseURL: "postgres://localhost/beachsync",
		},
		Pipeline: PipelineConfig{
			BatchSize:          50,
			RateLimitPerMinute: 30,
		},
		Nominatim: NominatimConfig{DelaySecs: 1.0},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validConfig().Validate())
}

func TestValidate_SQLiteDriver(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Store = StoreConfig{Driver: "sqlite", SQLitePath: "test.db"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongodb" }},
		{"postgres without url", func(c *Config) { c.Store.DatabaseURL = "" }},
		{"sqlite without path", func(c *Config) {
			c.Store = StoreConfig{Driver: "sqlite"}
		}},
		{"zero batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }},
		{"zero rate limit", func(c *Config) { c.Pipeline.RateLimitPerMinute = 0 }},
		{"negative nominatim delay", func(c *Config) { c.Nominatim.DelaySecs = -1 }},
		{"negative weather delay", func(c *Config) { c.Weather.DelaySecs = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BEACHSYNC_STORE_DATABASE_URL", "postgres://localhost/beachsync")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.BaseURL)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 30, cfg.Pipeline.RateLimitPerMinute)
	assert.InDelta(t, 1.0, cfg.Nominatim.DelaySecs, 1e-9)
	assert.InDelta(t, 1.0, cfg.Weather.DelaySecs, 1e-9)
	assert.False(t, cfg.Weather.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BEACHSYNC_STORE_DATABASE_URL", "postgres://localhost/beachsync")
	t.Setenv("BEACHSYNC_PIPELINE_BATCH_SIZE", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
}

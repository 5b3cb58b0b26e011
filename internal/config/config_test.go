package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-review/internal/reconcile"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceHTTP, cfg.Review.Source)
	assert.Equal(t, 15, cfg.Review.PageSize)
	assert.Equal(t, reconcile.MergeUngoverned, cfg.Review.UngovernedPolicy)
	assert.Equal(t, 100, cfg.Metadata.IntervalPageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("METADATA_BASE_URL", "https://metadata.example.org/")
	t.Setenv("METADATA_TIMEOUT", "5s")
	t.Setenv("REVIEW_SOURCE", "Postgres")
	t.Setenv("REVIEW_PAGE_SIZE", "0")
	t.Setenv("REVIEW_UNGOVERNED_POLICY", "isolate")
	t.Setenv("DB_NAME", "archive")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://metadata.example.org", cfg.Metadata.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Metadata.Timeout)
	assert.Equal(t, SourcePostgres, cfg.Review.Source)
	assert.Equal(t, 0, cfg.Review.PageSize)
	assert.Equal(t, reconcile.IsolateUngoverned, cfg.Review.UngovernedPolicy)
	assert.Equal(t, "archive", cfg.Database.Database)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_ParseErrors(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port", "SERVER_PORT", "eighty"},
		{"timeout", "METADATA_TIMEOUT", "soon"},
		{"policy", "REVIEW_UNGOVERNED_POLICY", "split"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"page size", func(c *Config) { c.Review.PageSize = -1 }},
		{"relative url", func(c *Config) { c.Metadata.BaseURL = "metadata/api" }},
		{"source", func(c *Config) { c.Review.Source = "ftp" }},
		{"interval page size", func(c *Config) { c.Metadata.IntervalPageSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ListingsDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Listings.Providers, 1)
	assert.Equal(t, "realtor", cfg.Listings.Providers[0].Name)
	assert.Equal(t, 24*time.Hour, cfg.Listings.CacheTTL)
	assert.Equal(t, 30, cfg.Listings.MaxCallsPerMinute)
	assert.Equal(t, 5, cfg.Listings.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Listings.InitialBackoff)
	assert.Equal(t, 10.0, cfg.Listings.DefaultRadiusMiles)
	assert.Equal(t, CacheBackendPostgres, cfg.CacheBackend)
	assert.Equal(t, []string{"realtor"}, cfg.Listings.MissingAPIKeys())
}

func TestLoad_ListingsOverrides(t *testing.T) {
	t.Setenv("LISTINGS_PROVIDER_NAME", "zillow")
	t.Setenv("LISTINGS_API_KEY", "shared-key")
	t.Setenv("LISTINGS_CACHE_TTL_HOURS", "0.5")
	t.Setenv("LISTINGS_MAX_CALLS_PER_MINUTE", "120")
	t.Setenv("LISTINGS_MAX_RETRIES", "2")
	t.Setenv("LISTINGS_INITIAL_BACKOFF_MS", "100")
	t.Setenv("CACHE_BACKEND", "Redis")

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Listings.Providers, 1)
	assert.Equal(t, "zillow", cfg.Listings.Providers[0].Name)
	assert.Equal(t, "shared-key", cfg.Listings.Providers[0].APIKey)
	assert.Equal(t, 30*time.Minute, cfg.Listings.CacheTTL)
	assert.Equal(t, 120, cfg.Listings.MaxCallsPerMinute)
	assert.Equal(t, 2, cfg.Listings.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Listings.InitialBackoff)
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)
	assert.Empty(t, cfg.Listings.MissingAPIKeys())
}

func TestLoad_MultipleProviders(t *testing.T) {
	t.Setenv("LISTINGS_PROVIDERS", "realtor, us-real-estate ,realtor")
	t.Setenv("LISTINGS_API_KEY", "shared")
	t.Setenv("LISTINGS_US_REAL_ESTATE_BASE_URL", "https://us-real-estate.example.com")
	t.Setenv("LISTINGS_US_REAL_ESTATE_API_KEY", "own")

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Listings.Providers, 2)
	assert.Equal(t, "realtor", cfg.Listings.Providers[0].Name)
	assert.Equal(t, "shared", cfg.Listings.Providers[0].APIKey)
	assert.Equal(t, "us-real-estate", cfg.Listings.Providers[1].Name)
	assert.Equal(t, "https://us-real-estate.example.com", cfg.Listings.Providers[1].BaseURL)
	assert.Equal(t, "own", cfg.Listings.Providers[1].APIKey)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown cache backend", key: "CACHE_BACKEND", value: "memcached"},
		{name: "zero rate limit", key: "LISTINGS_MAX_CALLS_PER_MINUTE", value: "0"},
		{name: "negative retries", key: "LISTINGS_MAX_RETRIES", value: "-1"},
		{name: "zero ttl", key: "LISTINGS_CACHE_TTL_HOURS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", cfg.DatabaseDSN())

	redis := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", redis.RedisAddr())
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends accepted by CACHE_BACKEND
const (
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Env          string
	LogLevel     string
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Listings     ListingsConfig
	CacheBackend string
	OTEL         OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ProviderConfig describes one upstream listings API
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIHost string
	APIKey  string
}

// ListingsConfig holds settings shared by every listings provider
type ListingsConfig struct {
	Providers          []ProviderConfig
	CacheTTL           time.Duration
	MaxCallsPerMinute  int
	MaxRetries         int
	InitialBackoff     time.Duration
	DefaultRadiusMiles float64
	RequestTimeout     time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: time.Duration(getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "propertymap"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Listings: ListingsConfig{
			Providers:          loadProviders(),
			CacheTTL:           time.Duration(getEnvAsFloat("LISTINGS_CACHE_TTL_HOURS", 24) * float64(time.Hour)),
			MaxCallsPerMinute:  getEnvAsInt("LISTINGS_MAX_CALLS_PER_MINUTE", 30),
			MaxRetries:         getEnvAsInt("LISTINGS_MAX_RETRIES", 5),
			InitialBackoff:     time.Duration(getEnvAsInt("LISTINGS_INITIAL_BACKOFF_MS", 500)) * time.Millisecond,
			DefaultRadiusMiles: getEnvAsFloat("LISTINGS_DEFAULT_RADIUS_MILES", 10),
			RequestTimeout:     time.Duration(getEnvAsInt("LISTINGS_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendPostgres)),
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "propertymap-listings"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the listings pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	switch c.CacheBackend {
	case CacheBackendPostgres, CacheBackendRedis, CacheBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend))
	}
	if len(c.Listings.Providers) == 0 {
		errs = append(errs, errors.New("at least one listings provider is required"))
	}
	if c.Listings.MaxCallsPerMinute <= 0 {
		errs = append(errs, errors.New("LISTINGS_MAX_CALLS_PER_MINUTE must be positive"))
	}
	if c.Listings.MaxRetries < 0 {
		errs = append(errs, errors.New("LISTINGS_MAX_RETRIES must not be negative"))
	}
	if c.Listings.CacheTTL <= 0 {
		errs = append(errs, errors.New("LISTINGS_CACHE_TTL_HOURS must be positive"))
	}
	if c.Listings.DefaultRadiusMiles <= 0 {
		errs = append(errs, errors.New("LISTINGS_DEFAULT_RADIUS_MILES must be positive"))
	}
	return errors.Join(errs...)
}

// MissingAPIKeys returns the providers configured without an API key
func (c *ListingsConfig) MissingAPIKeys() []string {
	var names []string
	for _, p := range c.Providers {
		if p.APIKey == "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// loadProviders reads LISTINGS_PROVIDERS (comma separated) or the single
// LISTINGS_PROVIDER_NAME. Per provider LISTINGS_<NAME>_BASE_URL, _API_HOST and
// _API_KEY override the shared LISTINGS_* values.
func loadProviders() []ProviderConfig {
	names := splitList(os.Getenv("LISTINGS_PROVIDERS"))
	if len(names) == 0 {
		names = []string{getEnv("LISTINGS_PROVIDER_NAME", "realtor")}
	}

	baseURL := getEnv("LISTINGS_BASE_URL", "https://realty-in-us.p.rapidapi.com")
	apiHost := getEnv("LISTINGS_API_HOST", "")
	apiKey := getEnv("LISTINGS_API_KEY", "")

	providers := make([]ProviderConfig, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		prefix := "LISTINGS_" + envName(name) + "_"
		providers = append(providers, ProviderConfig{
			Name:    name,
			BaseURL: getEnv(prefix+"BASE_URL", baseURL),
			APIHost: getEnv(prefix+"API_HOST", apiHost),
			APIKey:  getEnv(prefix+"API_KEY", apiKey),
		})
	}
	return providers
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/propertymap/backend/internal/adapters/cache"
	"github.com/zatekoja/propertymap/backend/internal/adapters/database"
	"github.com/zatekoja/propertymap/backend/internal/adapters/providers/listings"
	"github.com/zatekoja/propertymap/backend/internal/api/handlers"
	"github.com/zatekoja/propertymap/backend/internal/api/routes"
	"github.com/zatekoja/propertymap/backend/internal/application/services"
	"github.com/zatekoja/propertymap/backend/internal/domain/providers"
	"github.com/zatekoja/propertymap/backend/internal/domain/repositories"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/listingsapi"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
	"github.com/zatekoja/propertymap/backend/pkg/config"
	"github.com/zatekoja/propertymap/backend/pkg/ratelimit"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	if missing := cfg.Listings.MissingAPIKeys(); len(missing) > 0 {
		log.Warn().Strs("providers", missing).Msg("listings API key not configured, upstream calls will likely be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	clk := clock.New()

	cacheRepo, closeCache, err := newCacheRepository(ctx, cfg, clk)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to initialize listing cache")
	}
	defer closeCache()

	// One bucket per provider, shared by every request to it
	limiters := ratelimit.NewRegistry(cfg.Listings.MaxCallsPerMinute, clk)
	httpClient := &http.Client{Timeout: cfg.Listings.RequestTimeout}

	searchers := make([]providers.ListingSearcher, 0, len(cfg.Listings.Providers))
	for _, p := range cfg.Listings.Providers {
		client := listingsapi.NewClientWithHTTP(p.BaseURL, p.APIKey, p.APIHost, httpClient)

		fetcherCfg := services.DefaultPageFetcherConfig(p.Name)
		fetcherCfg.MaxRetries = cfg.Listings.MaxRetries
		fetcherCfg.InitialBackoff = cfg.Listings.InitialBackoff
		fetcher := services.NewRetryingFetcher(fetcherCfg, client, limiters.Get(p.Name), clk, metrics)

		normalizer := listings.NewNormalizer(p.Name).WithLogger(log.With().Str("provider", p.Name).Logger())
		driver := services.NewPaginationDriver(p.Name, fetcher, normalizer, metrics)
		queryCache := services.NewQueryCache(cacheRepo, p.Name, cfg.Listings.CacheTTL, clk, metrics)

		searchers = append(searchers, services.NewListingSearchService(p.Name, queryCache, driver, cfg.Listings.DefaultRadiusMiles))
		log.Info().Str("provider", p.Name).Str("base_url", p.BaseURL).Msg("listings provider registered")
	}

	aggregator := services.NewListingAggregationService(searchers...)
	router := routes.NewRouter(handlers.NewListingHandler(aggregator), metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}

// newCacheRepository builds the configured cache backend and returns a func
// releasing its connections.
func newCacheRepository(ctx context.Context, cfg *config.Config, clk clock.Clock) (repositories.ListingCacheRepository, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("listing cache using Redis")
		return cache.NewRedisListingCache(client, cfg.Listings.CacheTTL, clk), func() { _ = client.Close() }, nil

	case config.CacheBackendMemory:
		log.Info().Msg("listing cache using process memory")
		return cache.NewMemoryListingCache(clk), func() {}, nil

	default:
		client, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		adapter := database.NewListingCacheAdapter(client, clk)
		if err := adapter.EnsureSchema(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info().Str("table", database.ListingCacheTable).Msg("listing cache using PostgreSQL")
		return adapter, func() { _ = client.Close() }, nil
	}
}

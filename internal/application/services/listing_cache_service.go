package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/domain/repositories"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
)

// DefaultCacheTTL is how long a stored search result is served.
const DefaultCacheTTL = 24 * time.Hour

// QueryCache serves and stores search results keyed by provider and query
// hash. Storage failures never fail a search; they are logged and treated as
// a miss.
type QueryCache struct {
	repo     repositories.ListingCacheRepository
	provider string
	ttl      time.Duration
	clock    clock.Clock
	metrics  *observability.Metrics
}

// NewQueryCache creates a cache for one provider
func NewQueryCache(repo repositories.ListingCacheRepository, provider string, ttl time.Duration, clk clock.Clock, metrics *observability.Metrics) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &QueryCache{
		repo:     repo,
		provider: provider,
		ttl:      ttl,
		clock:    clk,
		metrics:  metrics,
	}
}

// Key returns the storage key for query: "<provider>:<hash>".
func (c *QueryCache) Key(query entities.SearchQuery) (string, error) {
	hash, err := query.Hash()
	if err != nil {
		return "", err
	}
	return c.provider + ":" + hash, nil
}

// Lookup returns the cached listings for query. A stale entry is deleted and
// reported as a miss.
func (c *QueryCache) Lookup(ctx context.Context, query entities.SearchQuery) ([]entities.NormalizedListing, bool) {
	logger := observability.LoggerFromContext(ctx).With().Str("provider", c.provider).Logger()

	key, err := c.Key(query)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot hash query, skipping cache")
		return nil, false
	}

	entry, err := c.repo.FindByHash(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
		observability.RecordCacheMiss(ctx, c.metrics, c.provider)
		return nil, false
	}
	if entry == nil {
		observability.RecordCacheMiss(ctx, c.metrics, c.provider)
		return nil, false
	}

	if !entry.IsFresh(c.clock.Now(), c.ttl) {
		if err := c.repo.DeleteByHash(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to delete stale cache entry")
		}
		logger.Debug().Str("key", key).Time("created_at", entry.CreatedAt).Msg("cache entry expired")
		observability.RecordCacheMiss(ctx, c.metrics, c.provider)
		return nil, false
	}

	var cached []entities.NormalizedListing
	if err := json.Unmarshal(entry.Payload, &cached); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache entry is not decodable")
		observability.RecordCacheMiss(ctx, c.metrics, c.provider)
		return nil, false
	}

	observability.RecordCacheHit(ctx, c.metrics, c.provider)
	return cached, true
}

// Store saves listings for query. Empty results are not stored.
func (c *QueryCache) Store(ctx context.Context, query entities.SearchQuery, listings []entities.NormalizedListing) {
	if len(listings) == 0 {
		return
	}
	logger := observability.LoggerFromContext(ctx).With().Str("provider", c.provider).Logger()

	key, err := c.Key(query)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot hash query, not caching")
		return
	}
	payload, err := json.Marshal(listings)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot encode listings, not caching")
		return
	}
	if err := c.repo.UpsertByHash(ctx, key, payload); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to store search result")
	}
}

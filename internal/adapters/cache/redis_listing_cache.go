package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/domain/repositories"
	redisclient "github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
)

// DefaultKeyPrefix namespaces listing cache keys in a shared Redis.
const DefaultKeyPrefix = "listings:cache:"

// storedEntry is the value written under each key. created_at travels with
// the payload so freshness is judged the same way for every backend.
type storedEntry struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// RedisListingCache implements ListingCacheRepository using Redis
type RedisListingCache struct {
	client *redisclient.Client
	prefix string
	expiry time.Duration
	clock  clock.Clock
}

// NewRedisListingCache creates a new Redis backed listing cache. Keys expire
// after expiry; zero keeps them until overwritten or deleted.
func NewRedisListingCache(client *redisclient.Client, expiry time.Duration, clk clock.Clock) *RedisListingCache {
	if clk == nil {
		clk = clock.New()
	}
	return &RedisListingCache{
		client: client,
		prefix: DefaultKeyPrefix,
		expiry: expiry,
		clock:  clk,
	}
}

var _ repositories.ListingCacheRepository = (*RedisListingCache)(nil)

func (c *RedisListingCache) key(hash string) string {
	return c.prefix + hash
}

// FindByHash retrieves a cache entry by query hash
func (c *RedisListingCache) FindByHash(ctx context.Context, hash string) (*entities.CacheEntry, error) {
	raw, err := c.client.Client().Get(ctx, c.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return decodeStoredEntry(hash, raw)
}

// UpsertByHash stores payload under hash with the current time
func (c *RedisListingCache) UpsertByHash(ctx context.Context, hash string, payload json.RawMessage) error {
	value, err := encodeStoredEntry(payload, c.clock.Now().UTC())
	if err != nil {
		return err
	}
	if err := c.client.Client().Set(ctx, c.key(hash), value, c.expiry).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// DeleteByHash removes the entry for hash
func (c *RedisListingCache) DeleteByHash(ctx context.Context, hash string) error {
	if err := c.client.Client().Del(ctx, c.key(hash)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

func encodeStoredEntry(payload json.RawMessage, createdAt time.Time) ([]byte, error) {
	value, err := json.Marshal(storedEntry{Payload: payload, CreatedAt: createdAt})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return value, nil
}

func decodeStoredEntry(hash string, raw []byte) (*entities.CacheEntry, error) {
	var stored storedEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", hash, err)
	}
	return &entities.CacheEntry{
		Hash:      hash,
		Payload:   stored.Payload,
		CreatedAt: stored.CreatedAt,
	}, nil
}

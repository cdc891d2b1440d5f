package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/domain/repositories"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
)

// MemoryListingCache keeps cache entries in process. Used for local runs and
// tests; entries are lost on restart.
type MemoryListingCache struct {
	mu      sync.RWMutex
	entries map[string]entities.CacheEntry
	clock   clock.Clock
}

// NewMemoryListingCache creates an empty in-memory cache
func NewMemoryListingCache(clk clock.Clock) *MemoryListingCache {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryListingCache{
		entries: make(map[string]entities.CacheEntry),
		clock:   clk,
	}
}

var _ repositories.ListingCacheRepository = (*MemoryListingCache)(nil)

func (c *MemoryListingCache) FindByHash(_ context.Context, hash string) (*entities.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[hash]
	if !ok {
		return nil, nil
	}
	entry.Payload = append(json.RawMessage(nil), entry.Payload...)
	return &entry, nil
}

func (c *MemoryListingCache) UpsertByHash(_ context.Context, hash string, payload json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[hash] = entities.CacheEntry{
		Hash:      hash,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: c.clock.Now(),
	}
	return nil
}

func (c *MemoryListingCache) DeleteByHash(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, hash)
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryListingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

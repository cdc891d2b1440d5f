package repositories

import (
	"context"
	"encoding/json"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
)

// ListingCacheRepository stores serialized search results keyed by query hash
type ListingCacheRepository interface {
	// FindByHash returns the entry for hash, or nil when none is stored
	FindByHash(ctx context.Context, hash string) (*entities.CacheEntry, error)

	// UpsertByHash writes payload under hash with a fresh timestamp
	UpsertByHash(ctx context.Context, hash string, payload json.RawMessage) error

	// DeleteByHash removes the entry for hash; deleting a missing entry is not an error
	DeleteByHash(ctx context.Context, hash string) error
}

package providers

import (
	"context"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
)

// ListingSearcher runs a search against one listings provider
type ListingSearcher interface {
	// Name returns the provider tag stamped on every listing it returns
	Name() string

	// Search returns normalized listings matching query
	Search(ctx context.Context, query entities.SearchQuery) ([]entities.NormalizedListing, error)
}

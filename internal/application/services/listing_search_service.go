package services

import (
	"context"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/domain/providers"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultRadiusMiles applies to city and zip searches without a radius.
const DefaultRadiusMiles = 10.0

// ListingSearchService answers searches against one provider: cache first,
// then every upstream page.
type ListingSearchService struct {
	provider      string
	cache         *QueryCache
	driver        *PaginationDriver
	defaultRadius float64
}

// NewListingSearchService creates a search service. cache may be nil to
// disable caching.
func NewListingSearchService(provider string, cache *QueryCache, driver *PaginationDriver, defaultRadius float64) *ListingSearchService {
	if defaultRadius <= 0 {
		defaultRadius = DefaultRadiusMiles
	}
	return &ListingSearchService{
		provider:      provider,
		cache:         cache,
		driver:        driver,
		defaultRadius: defaultRadius,
	}
}

var _ providers.ListingSearcher = (*ListingSearchService)(nil)

// Name returns the provider tag
func (s *ListingSearchService) Name() string {
	return s.provider
}

// Search validates query, serves it from cache when fresh, and otherwise
// collects every page from the provider. Upstream failures, including an
// exhausted rate limit budget, are returned to the caller.
func (s *ListingSearchService) Search(ctx context.Context, query entities.SearchQuery) ([]entities.NormalizedListing, error) {
	ctx, span := observability.StartSpan(ctx, "ListingSearchService.Search")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("listings.provider", s.provider),
		attribute.String("listings.locality", string(query.Locality())),
	)
	logger := observability.LoggerFromContext(ctx).With().Str("provider", s.provider).Logger()

	if err := query.Validate(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Lookup(ctx, query); ok {
			observability.SetSpanAttributes(span, attribute.Bool("listings.cache_hit", true))
			logger.Debug().Int("listings", len(cached)).Msg("served from cache")
			return cached, nil
		}
	}

	target := query.UpstreamTarget(s.defaultRadius)
	collected, err := s.driver.CollectAll(ctx, target)
	if err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Str("target", string(target.Kind)).Msg("listing search failed")
		return nil, err
	}

	results := filterToArea(query, collected)
	if dropped := len(collected) - len(results); dropped > 0 {
		logger.Debug().Int("outside_area", dropped).Msg("filtered listings outside search area")
	}

	if s.cache != nil {
		s.cache.Store(ctx, query, results)
	}

	observability.SetSpanAttributes(span, attribute.Int("listings.count", len(results)))
	return results, nil
}

// filterToArea keeps listings inside a bbox or polygon query. The upstream
// circle covers more than the requested shape. Listings without coordinates
// are kept.
func filterToArea(query entities.SearchQuery, listings []entities.NormalizedListing) []entities.NormalizedListing {
	switch query.Locality() {
	case entities.LocalityBBox, entities.LocalityPolygon:
	default:
		return listings
	}

	kept := make([]entities.NormalizedListing, 0, len(listings))
	for _, l := range listings {
		if !l.HasCoordinates() {
			kept = append(kept, l)
			continue
		}
		center, _ := l.Center()
		if query.Contains(center) {
			kept = append(kept, l)
		}
	}
	return kept
}

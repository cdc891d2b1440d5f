package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/domain/providers"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
)

// ErrAllProvidersFailed is wrapped by SearchAll when no provider answered.
var ErrAllProvidersFailed = errors.New("all listing providers failed")

// ProviderOutcome reports how one provider fared in an aggregated search
type ProviderOutcome struct {
	Provider string `json:"provider"`
	Count    int    `json:"count"`
	Error    string `json:"error,omitempty"`
}

// AggregateResult is the merged answer of every provider
type AggregateResult struct {
	Type      string                       `json:"type"`
	Features  []entities.NormalizedListing `json:"features"`
	Providers []ProviderOutcome            `json:"providers"`
}

// ListingAggregationService fans a search out to every configured provider
type ListingAggregationService struct {
	searchers []providers.ListingSearcher
}

// NewListingAggregationService creates an aggregator over searchers
func NewListingAggregationService(searchers ...providers.ListingSearcher) *ListingAggregationService {
	return &ListingAggregationService{searchers: searchers}
}

// Providers returns the configured provider names in order
func (s *ListingAggregationService) Providers() []string {
	names := make([]string, 0, len(s.searchers))
	for _, searcher := range s.searchers {
		names = append(names, searcher.Name())
	}
	return names
}

// SearchAll runs query against every provider concurrently. A failing
// provider does not cancel the others; its error is reported in the result.
// Listings are de-duplicated by source and listing id, keeping provider
// order. An error is returned only for an invalid query or when every
// provider failed.
func (s *ListingAggregationService) SearchAll(ctx context.Context, query entities.SearchQuery) (*AggregateResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if len(s.searchers) == 0 {
		return nil, apperrors.NewInternalError("no listing providers configured", nil)
	}

	ctx, span := observability.StartSpan(ctx, "ListingAggregationService.SearchAll")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	type outcome struct {
		listings []entities.NormalizedListing
		err      error
	}
	outcomes := make([]outcome, len(s.searchers))

	var wg sync.WaitGroup
	for i, searcher := range s.searchers {
		wg.Add(1)
		go func(i int, searcher providers.ListingSearcher) {
			defer wg.Done()
			listings, err := searcher.Search(ctx, query)
			outcomes[i] = outcome{listings: listings, err: err}
		}(i, searcher)
	}
	wg.Wait()

	result := &AggregateResult{
		Type:      "FeatureCollection",
		Features:  []entities.NormalizedListing{},
		Providers: make([]ProviderOutcome, 0, len(s.searchers)),
	}
	seen := make(map[string]bool)
	var errs []error

	for i, o := range outcomes {
		name := s.searchers[i].Name()
		if o.err != nil {
			logger.Warn().Err(o.err).Str("provider", name).Msg("provider search failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, o.err))
			result.Providers = append(result.Providers, ProviderOutcome{Provider: name, Error: o.err.Error()})
			continue
		}

		count := 0
		for _, l := range o.listings {
			source := l.Source()
			if source == "" {
				source = name
			}
			key := source + "\x00" + l.ListingID()
			if seen[key] {
				continue
			}
			seen[key] = true
			result.Features = append(result.Features, l)
			count++
		}
		result.Providers = append(result.Providers, ProviderOutcome{Provider: name, Count: count})
	}

	if len(errs) == len(s.searchers) {
		err := fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
		observability.RecordError(span, err)
		return result, err
	}
	return result, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/propertymap/backend/internal/adapters/providers/listings"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/listingsapi"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
)

// PageSource returns the raw body of one page of a search
type PageSource interface {
	FetchPage(ctx context.Context, target entities.Target, page int) ([]byte, error)
}

// PaginationDriver walks every page of a search in order and normalizes the
// listings found on each.
type PaginationDriver struct {
	provider   string
	source     PageSource
	normalizer *listings.Normalizer
	metrics    *observability.Metrics
}

// NewPaginationDriver creates a driver for one provider
func NewPaginationDriver(provider string, source PageSource, normalizer *listings.Normalizer, metrics *observability.Metrics) *PaginationDriver {
	if normalizer == nil {
		normalizer = listings.NewNormalizer(provider)
	}
	return &PaginationDriver{
		provider:   provider,
		source:     source,
		normalizer: normalizer,
		metrics:    metrics,
	}
}

// CollectAll fetches pages 1..N sequentially. It stops on an empty page or
// once the reported page count is reached. Any page failure aborts the walk.
func (d *PaginationDriver) CollectAll(ctx context.Context, target entities.Target) ([]entities.NormalizedListing, error) {
	logger := observability.LoggerFromContext(ctx).With().Str("provider", d.provider).Logger()

	var collected []entities.NormalizedListing
	for page := 1; ; page++ {
		body, err := d.source.FetchPage(ctx, target, page)
		if err != nil {
			return nil, err
		}

		env, err := listings.ParseEnvelope(body, listingsapi.PageSize)
		if err != nil {
			return nil, apperrors.NewExternalError(fmt.Sprintf("%s returned an unreadable page %d", d.provider, page), err)
		}
		if len(env.Listings) == 0 {
			logger.Debug().Int("page", page).Msg("empty page, stopping")
			break
		}

		dropped := 0
		for i, raw := range env.Listings {
			listing, err := d.normalizer.Transform(raw)
			if err != nil {
				dropped++
				logger.Warn().Err(err).Int("page", page).Int("index", i).Msg("dropping listing")
				continue
			}
			collected = append(collected, listing)
		}
		observability.RecordDroppedListings(ctx, d.metrics, d.provider, dropped)

		if page >= env.TotalPages {
			break
		}
	}

	logger.Info().Int("listings", len(collected)).Msg("collected listings")
	return collected, nil
}

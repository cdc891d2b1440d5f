package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/domain/repositories"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
)

// ListingCacheTable is the table holding cached search results.
const ListingCacheTable = "listing_search_cache"

const listingCacheSchema = `CREATE TABLE IF NOT EXISTS listing_search_cache (
	hash TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ListingCacheAdapter implements ListingCacheRepository on PostgreSQL
type ListingCacheAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	clock  clock.Clock
}

// NewListingCacheAdapter creates a new listing cache adapter
func NewListingCacheAdapter(client *postgres.Client, clk clock.Clock) *ListingCacheAdapter {
	if clk == nil {
		clk = clock.New()
	}
	return &ListingCacheAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		clock:  clk,
	}
}

var _ repositories.ListingCacheRepository = (*ListingCacheAdapter)(nil)

// EnsureSchema creates the cache table if it does not exist
func (a *ListingCacheAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, listingCacheSchema); err != nil {
		return apperrors.NewInternalError("failed to create listing cache table", err)
	}
	return nil
}

// FindByHash retrieves a cache entry by query hash
func (a *ListingCacheAdapter) FindByHash(ctx context.Context, hash string) (*entities.CacheEntry, error) {
	query, args, err := a.db.Select("hash", "payload", "created_at").
		From(ListingCacheTable).
		Where(goqu.Ex{"hash": hash}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entry := &entities.CacheEntry{}
	var payload []byte
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&entry.Hash, &payload, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get listing cache entry", err)
	}

	entry.Payload = json.RawMessage(payload)
	return entry, nil
}

// UpsertByHash inserts or replaces the entry for hash
func (a *ListingCacheAdapter) UpsertByHash(ctx context.Context, hash string, payload json.RawMessage) error {
	record := goqu.Record{
		"hash":       hash,
		"payload":    string(payload),
		"created_at": a.clock.Now().UTC(),
	}

	query, args, err := a.db.Insert(ListingCacheTable).
		Prepared(true).
		Rows(record).
		OnConflict(goqu.DoUpdate("hash", goqu.Record{
			"payload":    goqu.L("EXCLUDED.payload"),
			"created_at": goqu.L("EXCLUDED.created_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert listing cache entry", err)
	}
	return nil
}

// DeleteByHash removes the entry for hash
func (a *ListingCacheAdapter) DeleteByHash(ctx context.Context, hash string) error {
	query, args, err := a.db.Delete(ListingCacheTable).
		Where(goqu.Ex{"hash": hash}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete listing cache entry", err)
	}
	return nil
}

package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/propertymap/backend/internal/adapters/database"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
)

func setupListingCache(t *testing.T) (*database.ListingCacheAdapter, sqlmock.Sqlmock, *clock.Fake) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return database.NewListingCacheAdapter(postgres.NewClientFromDB(db), fake), mock, fake
}

func TestListingCacheAdapter_FindByHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored entry", func(t *testing.T) {
		adapter, mock, _ := setupListingCache(t)
		createdAt := time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "hash", "payload", "created_at" FROM "listing_search_cache"`)).
			WithArgs("realtor:abc").
			WillReturnRows(sqlmock.NewRows([]string{"hash", "payload", "created_at"}).
				AddRow("realtor:abc", []byte(`[{"type":"Feature"}]`), createdAt))

		entry, err := adapter.FindByHash(ctx, "realtor:abc")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "realtor:abc", entry.Hash)
		assert.JSONEq(t, `[{"type":"Feature"}]`, string(entry.Payload))
		assert.True(t, entry.CreatedAt.Equal(createdAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil when absent", func(t *testing.T) {
		adapter, mock, _ := setupListingCache(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM "listing_search_cache"`)).
			WithArgs("realtor:missing").
			WillReturnRows(sqlmock.NewRows([]string{"hash", "payload", "created_at"}))

		entry, err := adapter.FindByHash(ctx, "realtor:missing")
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		adapter, mock, _ := setupListingCache(t)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM "listing_search_cache"`)).
			WillReturnError(errors.New("connection reset"))

		entry, err := adapter.FindByHash(ctx, "realtor:abc")
		require.Error(t, err)
		assert.Nil(t, entry)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}

func TestListingCacheAdapter_UpsertByHash(t *testing.T) {
	adapter, mock, fake := setupListingCache(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "listing_search_cache"`)+`.*ON CONFLICT`).
		WithArgs(fake.Now().UTC(), "realtor:abc", `[{"type":"Feature"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpsertByHash(context.Background(), "realtor:abc", []byte(`[{"type":"Feature"}]`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingCacheAdapter_DeleteByHash(t *testing.T) {
	adapter, mock, _ := setupListingCache(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "listing_search_cache"`)).
		WithArgs("realtor:abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.DeleteByHash(context.Background(), "realtor:abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingCacheAdapter_EnsureSchema(t *testing.T) {
	adapter, mock, _ := setupListingCache(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS listing_search_cache`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

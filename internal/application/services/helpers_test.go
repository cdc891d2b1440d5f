package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/listingsapi"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newFakeClock() *clock.Fake {
	return clock.NewFake(testEpoch)
}

func noJitter(time.Duration) time.Duration { return 0 }

// scriptedClient replays responses in order and repeats the last one.
type scriptedClient struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []listingsapi.PageRequest
}

type scriptedResponse struct {
	page *listingsapi.Page
	err  error
}

func (c *scriptedClient) FetchPage(_ context.Context, req listingsapi.PageRequest) (*listingsapi.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := len(c.calls)
	c.calls = append(c.calls, req)
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	r := c.responses[idx]
	return r.page, r.err
}

func (c *scriptedClient) Calls() []listingsapi.PageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]listingsapi.PageRequest, len(c.calls))
	copy(out, c.calls)
	return out
}

func respond(status int, body string, headers ...string) scriptedResponse {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	return scriptedResponse{page: &listingsapi.Page{StatusCode: status, Header: h, Body: []byte(body)}}
}

func transportError(msg string) scriptedResponse {
	return scriptedResponse{err: fmt.Errorf("%s", msg)}
}

// listingJSON renders a raw upstream listing at lon/lat.
func listingJSON(id string, lon, lat float64, price int) string {
	return fmt.Sprintf(`{"property_id":%q,"lat":%v,"lon":%v,"price":%d}`, id, lat, lon, price)
}

func pageJSON(totalPages int, items ...string) string {
	return fmt.Sprintf(`{"properties":[%s],"total_pages":%d}`, strings.Join(items, ","), totalPages)
}

func mustQuery(t *testing.T, params map[string]any) entities.SearchQuery {
	t.Helper()
	q, err := entities.ParseSearchQuery(params)
	require.NoError(t, err)
	return q
}

func listingIDs(listings []entities.NormalizedListing) []string {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ListingID())
	}
	return ids
}

func mustPayload(t *testing.T, listings []entities.NormalizedListing) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(listings)
	require.NoError(t, err)
	return payload
}

type mockCacheRepository struct {
	mock.Mock
}

func (m *mockCacheRepository) FindByHash(ctx context.Context, hash string) (*entities.CacheEntry, error) {
	args := m.Called(ctx, hash)
	entry, _ := args.Get(0).(*entities.CacheEntry)
	return entry, args.Error(1)
}

func (m *mockCacheRepository) UpsertByHash(ctx context.Context, hash string, payload json.RawMessage) error {
	args := m.Called(ctx, hash, payload)
	return args.Error(0)
}

func (m *mockCacheRepository) DeleteByHash(ctx context.Context, hash string) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

type stubSearcher struct {
	name     string
	listings []entities.NormalizedListing
	err      error
	delay    time.Duration
	calls    int
	mu       sync.Mutex
}

func (s *stubSearcher) Name() string { return s.name }

func (s *stubSearcher) Search(ctx context.Context, _ entities.SearchQuery) ([]entities.NormalizedListing, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.listings, s.err
}

func (s *stubSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func feature(source, id string, lon, lat float64) entities.NormalizedListing {
	return entities.NormalizedListing{
		Type:     "Feature",
		Geometry: entities.PointGeometry(lon, lat),
		Properties: map[string]any{
			entities.PropListingID: id,
			entities.PropSource:    source,
			entities.PropPrice:     int64(100000),
			entities.PropBeds:      3.0,
			entities.PropBaths:     2.0,
		},
	}
}

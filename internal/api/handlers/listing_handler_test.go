package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/propertymap/backend/internal/application/services"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
)

type mockAggregator struct {
	mock.Mock
}

func (m *mockAggregator) SearchAll(ctx context.Context, query entities.SearchQuery) (*services.AggregateResult, error) {
	args := m.Called(ctx, query)
	result, _ := args.Get(0).(*services.AggregateResult)
	return result, args.Error(1)
}

func (m *mockAggregator) Providers() []string {
	return m.Called().Get(0).([]string)
}

func sampleResult() *services.AggregateResult {
	return &services.AggregateResult{
		Type: "FeatureCollection",
		Features: []entities.NormalizedListing{{
			Type:       "Feature",
			Geometry:   entities.PointGeometry(-93.2, 36.5),
			Properties: map[string]any{entities.PropListingID: "a", entities.PropPrice: int64(250000), entities.PropSource: "realtor"},
		}},
		Providers: []services.ProviderOutcome{{Provider: "realtor", Count: 1}},
	}
}

func TestListingHandler_SearchListingsJSON(t *testing.T) {
	agg := &mockAggregator{}
	agg.On("SearchAll", mock.Anything, mock.MatchedBy(func(q entities.SearchQuery) bool {
		return q.City == "Branson" && q.State == "MO"
	})).Return(sampleResult(), nil).Once()

	body := bytes.NewBufferString(`{"city":"Branson","state":"MO"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/listings/search", body)
	rec := httptest.NewRecorder()

	NewListingHandler(agg).SearchListingsJSON(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "FeatureCollection", got["type"])
	features := got["features"].([]any)
	require.Len(t, features, 1)
	props := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, 250000.0, props["price"])
	agg.AssertExpectations(t)
}

func TestListingHandler_SearchListingsQueryString(t *testing.T) {
	agg := &mockAggregator{}
	agg.On("SearchAll", mock.Anything, mock.MatchedBy(func(q entities.SearchQuery) bool {
		return q.BBox != nil && q.BBox.West == -93.3 && q.BBox.North == 36.6
	})).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/listings/search?bbox=-93.3,36.4,-93.1,36.6", nil)
	rec := httptest.NewRecorder()

	NewListingHandler(agg).SearchListings(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	agg.AssertExpectations(t)
}

func TestListingHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*mockAggregator)
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       `[1,2`,
			setup:      func(*mockAggregator) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown parameter",
			body:       `{"city":"Branson","state":"MO","bedrooms":3}`,
			setup:      func(*mockAggregator) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "two localities",
			body:       `{"zip":"65616","city":"Branson","state":"MO"}`,
			setup:      func(*mockAggregator) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "every provider failed",
			body: `{"zip":"65616"}`,
			setup: func(m *mockAggregator) {
				m.On("SearchAll", mock.Anything, mock.Anything).Return(
					&services.AggregateResult{Providers: []services.ProviderOutcome{{Provider: "realtor", Error: "rate limited"}}},
					fmt.Errorf("%w: realtor: boom", services.ErrAllProvidersFailed),
				).Once()
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "internal error",
			body: `{"zip":"65616"}`,
			setup: func(m *mockAggregator) {
				m.On("SearchAll", mock.Anything, mock.Anything).Return(nil, apperrors.NewInternalError("no listing providers configured", nil)).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &mockAggregator{}
			tt.setup(agg)

			req := httptest.NewRequest(http.MethodPost, "/api/listings/search", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			NewListingHandler(agg).SearchListingsJSON(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			agg.AssertExpectations(t)
		})
	}
}

func TestListingHandler_Health(t *testing.T) {
	agg := &mockAggregator{}
	agg.On("Providers").Return([]string{"realtor"})

	rec := httptest.NewRecorder()
	NewListingHandler(agg).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","providers":["realtor"]}`, rec.Body.String())
}

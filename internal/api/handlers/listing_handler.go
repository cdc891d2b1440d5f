package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/propertymap/backend/internal/application/services"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
)

const maxSearchBodyBytes = 1 << 20

// ListingAggregator is the search surface the handler depends on
type ListingAggregator interface {
	SearchAll(ctx context.Context, query entities.SearchQuery) (*services.AggregateResult, error)
	Providers() []string
}

// ListingHandler handles listing search requests
type ListingHandler struct {
	aggregator ListingAggregator
}

// NewListingHandler creates a new listing handler
func NewListingHandler(aggregator ListingAggregator) *ListingHandler {
	return &ListingHandler{aggregator: aggregator}
}

// SearchListingsJSON handles POST /api/listings/search
func (h *ListingHandler) SearchListingsJSON(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBodyBytes))
	if err := decoder.Decode(&params); err != nil {
		respondWithError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	h.search(w, r, params)
}

// SearchListings handles GET /api/listings/search
func (h *ListingHandler) SearchListings(w http.ResponseWriter, r *http.Request) {
	params := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[len(values)-1]
		}
	}
	h.search(w, r, params)
}

func (h *ListingHandler) search(w http.ResponseWriter, r *http.Request, params map[string]any) {
	query, err := entities.ParseSearchQuery(params)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	result, err := h.aggregator.SearchAll(r.Context(), query)
	if err != nil {
		if errors.Is(err, services.ErrAllProvidersFailed) {
			observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("listing search failed for every provider")
			respondWithJSON(w, http.StatusBadGateway, map[string]any{
				"error":     "no listing provider could answer the search",
				"providers": result.Providers,
			})
			return
		}
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Health handles GET /health
func (h *ListingHandler) Health(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": h.aggregator.Providers(),
	})
}

func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeRateLimited:
		respondWithError(w, http.StatusTooManyRequests, appErr.Message)
	case apperrors.ErrorTypeExternal:
		respondWithError(w, http.StatusBadGateway, appErr.Message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

package routes

import (
	"net/http"

	"github.com/zatekoja/propertymap/backend/internal/api/handlers"
	"github.com/zatekoja/propertymap/backend/internal/api/middleware"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	listingHandler *handlers.ListingHandler
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(listingHandler *handlers.ListingHandler, metrics *observability.Metrics) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		listingHandler: listingHandler,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.listingHandler.Health)

	// Listing search endpoints
	r.mux.HandleFunc("POST /api/listings/search", r.listingHandler.SearchListingsJSON)
	r.mux.HandleFunc("GET /api/listings/search", r.listingHandler.SearchListings)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)

	// CORS wraps everything so preflight never reaches the mux
	handler = middleware.CORSMiddleware(handler)

	return handler
}

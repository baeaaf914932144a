package router

import (
	"net/http"

	"booba-marketplace-api/internal/handler"
	"booba-marketplace-api/internal/middleware"
	"booba-marketplace-api/pkg/apierror"
	"booba-marketplace-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler            *handler.Handler
	MarketplaceHandler *handler.MarketplaceHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.PlayerID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Player-Id"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))

	// Anything outside the supported method set gets the JSON 405 body.
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.MethodNotAllowed())
	})

	// Marketplace endpoint: one resource, dispatch by method + action.
	// Player identity is an opaque caller-supplied id - no auth layer.
	if cfg.MarketplaceHandler != nil {
		r.Route("/api/marketplace", func(r chi.Router) {
			r.Get("/", cfg.MarketplaceHandler.Read)
			r.Post("/", cfg.MarketplaceHandler.Write)
			r.Delete("/", cfg.MarketplaceHandler.Cancel)
			// Non-preflight OPTIONS still gets an empty 200; preflights are
			// answered by the CORS middleware before reaching here.
			r.Options("/", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		})
	}

	// Monitoring endpoints
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/stats", cfg.Handler.Stats)
		})
	}

	return r
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/api/middleware"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/tenant"
)

// NewRouter creates and configures the HTTP router. The dispatcher
// serves both POST / and POST /a2a so flat and JSON-RPC callers can
// use either path.
func NewRouter(logger zerolog.Logger, db store.DataStore, dispatcher *a2a.Dispatcher, tenants *tenant.Resolver, card http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware. Tenant resolution runs before logging so
	// request lines carry the tenant label.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tenant(tenants))
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - allow all origins (agents call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", healthHandler(db))
	r.Get("/.well-known/agent-card.json", card)

	r.Post("/", dispatcher.ServeHTTP)
	r.Post("/a2a", dispatcher.ServeHTTP)

	return r
}

func healthHandler(db store.DataStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","store":"unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

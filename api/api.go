// Package api is the thin, read-only status/dashboard router of spec.md §6
// (SPEC_FULL.md §4.10): health, metrics, recent scan history, and rate
// limiter counters. It mirrors the teacher's router-assembly style (chi +
// go-chi/cors + go-chi/httprate + prometheus middleware) but carries none of
// the library-mutating routes — those live in the out-of-scope Subsonic
// adapter/UI per spec.md's non-goals.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sptnr-core/externalclients"
	"sptnr-core/externalclients/metadataa"
	"sptnr-core/externalclients/metadatab"
	"sptnr-core/externalclients/popularity"
	"sptnr-core/externalclients/scrobbles"
	"sptnr-core/ratelimiter"
	"sptnr-core/shared"
	"sptnr-core/shared/logger"
	"sptnr-core/shared/metrics"
	"sptnr-core/store"
)

// Services is the subset of pipeline.Services the status API reads from. It
// is a distinct type (rather than reusing pipeline.Services) so this package
// never depends on the pipeline package, keeping the dependency graph one-way.
type Services struct {
	Store      *store.Store
	Limiter    *ratelimiter.Limiter
	Popularity *popularity.Client
	Scrobbles  *scrobbles.Client
	MetadataA  *metadataa.Client
	MetadataB  *metadatab.Client
}

// NewRouter assembles the status/dashboard router.
func NewRouter(svc *Services) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.TraceMiddleware)
	r.Use(metrics.MetricsMiddleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(httprate.LimitByIP(300, time.Minute))
	r.Use(shared.ErrorMiddleware)

	r.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", handleHealth(svc))
	r.Get("/api/scans/recent", handleRecentScans(svc))
	r.Get("/api/ratelimiter/state", handleRateLimiterState(svc))

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func handleHealth(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clients := map[string]externalclients.ClientHealth{
			"popularity": svc.Popularity.Health(),
			"scrobbles":  svc.Scrobbles.Health(),
			"metadata_a": svc.MetadataA.Health(),
			"metadata_b": svc.MetadataB.Health(),
		}
		writeJSON(w, map[string]any{
			"status":  "ok",
			"clients": clients,
		})
	}
}

func handleRecentScans(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.Store.RecentScans(50)
		if err != nil {
			shared.RenderError(w, r, err)
			return
		}
		writeJSON(w, entries)
	}
}

func handleRateLimiterState(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Limiter.State())
	}
}

// Package httptransport assembles the HTTP surface: public key endpoints, the
// admin surface, health probes and the metrics endpoint.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keybridge/internal/platform/middleware"
	"keybridge/internal/transport/http/shared"
)

// Registrar mounts a feature's routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Options tune the assembled surface.
type Options struct {
	// RateLimit caps requests per client IP per minute on the feature routes.
	// Zero disables the cap. Probes and metrics are never limited.
	RateLimit int
}

// NewRouter wires the full surface. readiness checks run on /readyz; nil
// checkers are skipped so optional dependencies (Redis) do not fail the probe.
func NewRouter(logger *slog.Logger, readiness map[string]HealthChecker, opts Options, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		for name, check := range readiness {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":     "unavailable",
					"dependency": name,
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(middleware.RateLimit(opts.RateLimit, time.Minute, logger))
		}
		for _, feature := range features {
			feature.Register(r)
		}
	})
	return r
}

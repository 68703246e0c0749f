package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

// readinessCheck reports whether one dependency is usable.
type readinessCheck func(ctx context.Context) error

// newOpsRouter serves liveness, readiness and Prometheus metrics.
func newOpsRouter(log *logger.Logger, gatherer prometheus.Gatherer, checks map[string]readinessCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			status, code := map[string]string{}, http.StatusOK
			for name, check := range checks {
				if err := check(ctx); err != nil {
					log.Warn(log.WithField(ctx, "dependency", name), "readiness check failed", err)
					status[name] = err.Error()
					code = http.StatusServiceUnavailable
					continue
				}
				status[name] = "ok"
			}
			writeJSON(w, code, status)
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relocore/dispatch/internal/metrics"
	"github.com/relocore/dispatch/internal/store"
)

func NewRouter(e Engine, s store.Store, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(120))

	assignments := NewAssignmentsHandler(e, s)
	quotes := NewQuotesHandler(e)
	admin := NewAdminHandler(s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assignments", assignments.Create)
		r.Post("/assignments/reassign", assignments.Reassign)
		r.Get("/assignments/{id}", assignments.Get)
		r.Get("/assignments/{id}/explain", assignments.Explain)

		r.Post("/quotes", quotes.Create)
		r.Get("/quotes/{id}", quotes.Get)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/stats", admin.Stats)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

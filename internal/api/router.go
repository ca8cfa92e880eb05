package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mirovis/taskcore/internal/api/middleware"
	"github.com/mirovis/taskcore/internal/watch"
)

// NewRouter builds the monitor router with the standard middleware chain.
func NewRouter(manager *watch.Manager, logger *slog.Logger) http.Handler {
	h := NewTaskHandler(manager, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Get("/healthz", h.Health)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/{id}/cancel", h.CancelTask)
	})
	return r
}

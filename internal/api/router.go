package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/micro-nova/devlog-go/internal/auth"
)

// Options tunes the router.
type Options struct {
	// UploadRateLimit is the number of upload requests per client IP per
	// minute. Zero disables limiting.
	UploadRateLimit int
}

// NewRouter creates and returns the main HTTP router.
func NewRouter(ctrl Controller, authSvc *auth.Service, bus EventBus, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus}

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)

		// Log file
		r.Post("/api/log", h.appendLog)
		r.Get("/api/log", h.getLog)
		r.Delete("/api/log", h.deleteLog)
		r.Get("/api/log/exists", h.logExists)
		r.Get("/api/log/path", h.logPath)

		// Shake trigger
		r.Get("/api/trigger", h.getTrigger)
		r.Put("/api/trigger", h.setTrigger)
		r.Post("/api/lifecycle/{state}", h.setLifecycle)

		// Upload relays
		r.Group(func(r chi.Router) {
			r.Use(uploadRateLimit(opts.UploadRateLimit))
			r.Post("/api/upload", h.upload)
			r.Post("/api/upload/slack", h.uploadSlack)
		})

		// SSE
		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package api exposes the spool broker over HTTP: printer management,
// job submission and lifecycle, queue passes, batching and a websocket
// event feed.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/spool/engine"
	"github.com/xraph/spool/service"
)

// API wires the HTTP handlers to an engine and its print service.
type API struct {
	eng    *engine.Engine
	svc    *service.Service
	ws     http.Handler
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithWebSocket mounts h (normally a *wire.Server) at /ws.
func WithWebSocket(h http.Handler) Option {
	return func(a *API) { a.ws = h }
}

// New creates an API.
func New(eng *engine.Engine, svc *service.Service, opts ...Option) *API {
	a := &API{eng: eng, svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Get("/health", a.health)
	if a.ws != nil {
		r.Handle("/ws", a.ws)
	}
	r.Route("/v1", a.RegisterRoutes)

	return r
}

// RegisterRoutes registers the versioned routes on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/printers", func(r chi.Router) {
		r.Get("/", a.listPrinters)
		r.Post("/", a.createPrinter)
		r.Post("/sync", a.syncPrinters)
		r.Get("/select", a.selectPrinter)
		r.Route("/{printerId}", func(r chi.Router) {
			r.Get("/", a.getPrinter)
			r.Put("/", a.updatePrinter)
			r.Delete("/", a.deletePrinter)
			r.Post("/activate", a.activatePrinter)
			r.Post("/deactivate", a.deactivatePrinter)
			r.Post("/drain", a.drainPrinter)
		})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", a.listJobs)
		r.Post("/", a.submitJob)
		r.Get("/counts", a.jobCounts)
		r.Route("/{jobId}", func(r chi.Router) {
			r.Get("/", a.getJob)
			r.Post("/process", a.processJob)
			r.Post("/complete", a.completeJob)
			r.Post("/fail", a.failJob)
			r.Post("/retry", a.retryJob)
			r.Post("/cancel", a.cancelJob)
		})
	})

	r.Post("/queue/process", a.processQueue)
	r.Post("/batches", a.batchJobs)
	r.Post("/preview", a.preview)
	r.Get("/stats", a.stats)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

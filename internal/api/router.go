// Package api exposes the document store over HTTP.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/observability"
	"github.com/bbernstein/panelboard-go/internal/services/export"
	"github.com/bbernstein/panelboard-go/internal/services/panel"
	"github.com/bbernstein/panelboard-go/internal/services/pubsub"
)

// RequestTimeout bounds every non-streaming request.
const RequestTimeout = 60 * time.Second

// Options holds the router dependencies. Metrics and PubSub are optional;
// without them /metrics and /ws are not mounted.
type Options struct {
	Panels   *panel.Service
	Exporter *export.Service
	PubSub   *pubsub.PubSub
	Metrics  *observability.Metrics
	Logger   *zap.Logger

	CORSOrigin string
	Debug      bool
}

// NewRouter creates the chi router with middleware and all routes.
func NewRouter(opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	if opts.Debug {
		router.Use(middleware.Logger)
	}
	router.Use(requestLogger(logger, opts.Metrics))
	router.Use(middleware.Recoverer)

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{opts.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            opts.Debug,
	})
	router.Use(corsMiddleware.Handler)

	// Streaming endpoints are outside the request timeout
	if opts.PubSub != nil {
		router.Handle("/ws", NewChangeFeed(opts.PubSub, logger))
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler())
	}

	h := NewHandler(opts.Panels, opts.Exporter, logger)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))

		r.Get("/parameters", h.GetParameters)
		r.Put("/parameters/{paramID}", h.UpdateParameter)

		if opts.Exporter != nil {
			r.Get("/export", h.Export)
		}

		r.Get("/", h.GetPanels)
		r.Post("/", h.CreatePanel)
		r.Get("/{panelID}", h.GetPanel)
		r.Put("/{panelID}", h.UpdatePanel)
		r.Delete("/{panelID}", h.DeletePanel)
	})

	return router
}

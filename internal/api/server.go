// Package api exposes the churn pipeline over a JSON REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fidde/churn_dashboard/internal/cache"
	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
)

// DataProvider returns the current churn table. *storage.Registry satisfies it.
type DataProvider interface {
	View(ctx context.Context) (*dataset.View, error)
}

// MetricsExporter receives the metrics of every evaluation.
type MetricsExporter interface {
	Export(ctx context.Context, result *models.FilterResult, filters models.FilterSpec) error
}

// Options configures the server. Zero values fall back to defaults.
type Options struct {
	Addr           string
	AllowedOrigins []string
	RequestTimeout time.Duration

	DefaultTopN int
	MaxTopN     int
	RankMode    models.RankMode

	Schema          dataset.Schema
	Cache           *cache.Cache
	Exporter        MetricsExporter
	ExportQueueSize int
	Static          http.Handler
	Logger          *slog.Logger
}

// Server is the REST API server.
type Server struct {
	data   DataProvider
	opts   Options
	logger  *slog.Logger
	router  *chi.Mux
	server  *http.Server
	exports *exportQueue
}

// NewServer creates a new API server.
func NewServer(data DataProvider, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.MaxTopN <= 0 {
		opts.MaxTopN = 50
	}
	if opts.DefaultTopN <= 0 || opts.DefaultTopN > opts.MaxTopN {
		opts.DefaultTopN = min(10, opts.MaxTopN)
	}
	if opts.Schema == (dataset.Schema{}) {
		opts.Schema = dataset.DefaultSchema()
	}
	if opts.ExportQueueSize <= 0 {
		opts.ExportQueueSize = DefaultExportQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		data:   data,
		opts:   opts,
		logger: opts.Logger,
		router: chi.NewRouter(),
	}

	if opts.Exporter != nil {
		s.exports = newExportQueue(opts.Exporter, opts.ExportQueueSize, opts.Logger)
		go s.exports.run()
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(opts.RequestTimeout))
	if len(opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Cache"},
			MaxAge:         300,
		}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)
		r.Get("/models", s.listModels)
		r.Get("/filters", s.listFilters)
		r.Get("/evaluate", s.evaluate)
		r.Get("/compare", s.compare)
		r.Get("/customers/{id}", s.getCustomer)
		r.Get("/charts/{chart}.png", s.getChart)
	})

	if opts.Static != nil {
		s.router.Handle("/*", opts.Static)
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if s.exports != nil {
		s.exports.close()
	}
	return err
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps pipeline errors to status codes.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownModel),
		errors.Is(err, models.ErrUnknownColumn),
		errors.Is(err, models.ErrInvalidTopN),
		errors.Is(err, errInvalidParam):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDataLoad):
		s.logger.Error("churn table unavailable", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, "churn table unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Package server exposes the dashboard coordinator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/aggregate"
	"github.com/sells-group/epidash/internal/dashboard"
	"github.com/sells-group/epidash/internal/geo"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/monitoring"
)

// Dispatcher submits events to the coordinator's run loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev dashboard.Event) (dashboard.Result, error)
}

// Options configures a Server. Every field except Port is optional.
type Options struct {
	Port        int
	CORSOrigins []string
	Layer       *geo.Layer
	Quality     *monitoring.DatasetSnapshot
	CacheStats  func() aggregate.CacheStats
}

// Server serves the dashboard API.
type Server struct {
	disp Dispatcher
	opts Options
	log  *zap.Logger
	srv  *http.Server
}

// New creates a Server for disp.
func New(disp Dispatcher, opts Options) *Server {
	s := &Server{
		disp: disp,
		opts: opts,
		log:  zap.L().With(zap.String("component", "server")),
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/metric", s.handleSelectMetric)
		r.Post("/range", s.handleFilterRange)
		r.Delete("/range", s.handleClearRange)
		r.Post("/index", s.handleScrub)
		r.Post("/playback/toggle", s.handleTogglePlay)
		r.Get("/nearest", s.handleNearest)
		r.Get("/regions", s.handleRegions)
		r.Post("/regions/{name}/select", s.handleSelectRegion)
		r.Delete("/detail", s.handleCloseDetail)
		r.Get("/legend", s.handleLegend)
		r.Get("/cache", s.handleCache)
		r.Get("/quality", s.handleQuality)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	s.log.Info("starting server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// dispatch applies ev and writes the resulting snapshot, or the mapped error.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev dashboard.Event) {
	res, err := s.disp.Dispatch(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, dashboard.ErrIndexOutOfRange),
		errors.Is(err, model.ErrUnknownMetric):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrUnknownRegion):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

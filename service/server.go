// Package service exposes the coordinator over HTTP: transaction submission
// and withdrawal, the third-party proof endpoint, sealed results, and chain
// status. Metrics are served on a separate listener.
package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/coordinator"
	"github.com/coordination-labs/auction-sdk/metrics"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// ListenAddr serves the coordinator API.
	ListenAddr string

	// MetricsAddr serves Prometheus metrics. Empty disables the listener.
	MetricsAddr string

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// GracefulShutdownDuration is the maximum wait for in-flight requests
	// during shutdown.
	GracefulShutdownDuration time.Duration

	// ChainPolicy is the default admission policy for chains registered over
	// the API.
	ChainPolicy coordinator.ChainPolicy

	Logger log.Logger
}

// Server hosts the coordinator API.
type Server struct {
	cfg     ServerConfig
	logger  log.Logger
	srv     *http.Server
	metrics *http.Server
}

// NewServer wires the API over the coordinator and manager.
func NewServer(cfg ServerConfig, coord *coordinator.Coordinator, manager *auction.Manager, mets *metrics.Metrics) *Server {
	logger := cfg.Logger.With("module", "service")

	h := &handler{coordinator: coord, manager: manager, logger: logger, chainPolicy: cfg.ChainPolicy}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	if cfg.MetricsAddr != "" && mets != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(mets.Registry(), promhttp.HandlerOpts{}))
		s.metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return s
}

// requestLogger logs one line per request on the structured logger.
func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Start serves until the context is canceled, then drains gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.ListenAddr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.metrics != nil {
		go func() {
			s.logger.Info("metrics server listening", "addr", s.cfg.MetricsAddr)
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()

	if s.metrics != nil {
		_ = s.metrics.Shutdown(shutdownCtx)
	}
	return s.srv.Shutdown(shutdownCtx)
}

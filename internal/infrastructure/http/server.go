package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mrops-br/product-engine/internal/infrastructure/config"
	"github.com/mrops-br/product-engine/internal/infrastructure/http/handler"
	"github.com/mrops-br/product-engine/internal/infrastructure/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	httpServer     *http.Server
	config         *config.ServerConfig
	handler        *handler.ProductHandler
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	durationMS     bool
	logger         *slog.Logger
}

// NewServer creates a new HTTP server. metricsHandler is mounted at /metrics.
func NewServer(
	cfg *config.ServerConfig,
	metricsCfg *config.MetricsConfig,
	productHandler *handler.ProductHandler,
	meterProvider metric.MeterProvider,
	metricsHandler http.Handler,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		config:         cfg,
		handler:        productHandler,
		meterProvider:  meterProvider,
		metricsHandler: metricsHandler,
		durationMS:     metricsCfg.DurationMS,
		logger:         logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return s
}

// setupMiddleware configures the middleware chain
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.StructuredLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	meter := s.meterProvider.Meter("products-api")
	s.router.Use(middleware.ActiveRequestsMiddleware(meter))
	if s.durationMS {
		s.router.Use(middleware.DurationMillisecondsMiddleware(meter))
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.handler.RegisterRoutes(s.router)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.metricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
}

// Handler returns the router wrapped with otelhttp for request spans and
// the standard http.server.* metrics.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "http-server",
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
		otelhttp.WithMeterProvider(s.meterProvider),
		otelhttp.WithMetricAttributesFn(func(r *http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{
				attribute.String("http.route", middleware.RoutePattern(r)),
			}
		}),
	)
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		slog.String("address", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

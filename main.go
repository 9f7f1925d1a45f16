package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrops-br/product-engine/internal/app/service"
	"github.com/mrops-br/product-engine/internal/domain"
	"github.com/mrops-br/product-engine/internal/infrastructure/config"
	"github.com/mrops-br/product-engine/internal/infrastructure/http"
	"github.com/mrops-br/product-engine/internal/infrastructure/http/handler"
	"github.com/mrops-br/product-engine/internal/infrastructure/repository/memory"
	"github.com/mrops-br/product-engine/internal/infrastructure/repository/mongo"
	"github.com/mrops-br/product-engine/internal/infrastructure/repository/resilient"
	"github.com/mrops-br/product-engine/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("products-api: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.Log.Level, &cfg.OTLP)
	slog.SetDefault(logger)
	logger.Debug("Configuration loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telem, err := telemetry.NewTelemetry(ctx, &cfg.OTLP, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down telemetry", slog.String("error", err.Error()))
		}
	}()

	tracer := telem.TracerProvider.Tracer("products-api")
	meter := telem.MeterProvider.Meter("products-api")

	logger.Info("Starting Products API", slog.String("store_driver", cfg.Store.Driver))

	repo, closeStore, err := newRepository(ctx, cfg, telem.TracerProvider, tracer, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	productService := service.NewProductService(repo, tracer, meter, logger)
	productHandler := handler.NewProductHandler(productService, logger)
	server := http.NewServer(&cfg.Server, &cfg.Metrics, productHandler, telem.MeterProvider, telem.MetricsHandler(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// newRepository builds the configured product store. The returned func
// releases whatever the store holds open.
func newRepository(
	ctx context.Context,
	cfg *config.Config,
	tp trace.TracerProvider,
	tracer trace.Tracer,
	logger *slog.Logger,
) (domain.ProductRepository, func(), error) {
	var (
		repo      domain.ProductRepository
		closeFn   = func() {}
		transient = func(error) bool { return false }
	)

	switch cfg.Store.Driver {
	case config.DriverMemory:
		repo = memory.NewProductRepository(tracer, logger)
	default:
		client, err := mongo.NewClient(ctx, cfg.Store.URI, cfg.Store.ConnectTimeout, tp)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to product store: %w", err)
		}
		closeFn = func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Error("Error disconnecting from product store", slog.String("error", err.Error()))
			}
		}
		repo = mongo.NewProductRepository(client, cfg.Store.Database, cfg.Store.Collection, tracer, logger)
		transient = mongo.IsTransient
	}

	if cfg.Resilience.Enabled {
		repo = resilient.NewProductRepository(repo, resilient.Options{
			MaxAttempts:         cfg.Resilience.MaxAttempts,
			InitialBackoff:      cfg.Resilience.InitialBackoff,
			ConsecutiveFailures: cfg.Resilience.ConsecutiveFailures,
			OpenTimeout:         cfg.Resilience.OpenTimeout,
			Transient:           transient,
		}, logger)
	}

	return repo, closeFn, nil
}

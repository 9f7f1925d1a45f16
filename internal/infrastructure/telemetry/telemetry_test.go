package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrops-br/product-engine/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTelemetry_WithoutExport(t *testing.T) {
	ctx := context.Background()
	telem, err := NewTelemetry(ctx, &config.OTLPConfig{ServiceName: "products-api", Environment: "test"}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	counter, err := telem.MeterProvider.Meter("test").Int64Counter("products.test.calls")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rr := httptest.NewRecorder()
	telem.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), "products_test_calls")

	require.NoError(t, telem.Shutdown(ctx))
}

func TestNewTelemetry_IndependentRegistries(t *testing.T) {
	ctx := context.Background()
	cfg := &config.OTLPConfig{ServiceName: "products-api"}

	first, err := NewTelemetry(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	second, err := NewTelemetry(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.NoError(t, first.Shutdown(ctx))
	assert.NoError(t, second.Shutdown(ctx))
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/otel/trace"
)

// cosmosRequestRateTooLarge is the server code Cosmos DB returns when throttling
const cosmosRequestRateTooLarge = 16500

// NewClient connects to the store, instruments every command with a span and
// pings the primary so start-up fails early on a bad URI.
// The client is safe for concurrent use and should be shared.
func NewClient(ctx context.Context, uri string, connectTimeout time.Duration, tp trace.TracerProvider) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetMonitor(otelmongo.NewMonitor(otelmongo.WithTracerProvider(tp)))

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}
	return client, nil
}

// IsTransient reports whether err is a store fault worth retrying:
// timeouts, network errors, errors labelled retryable and throttling.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) &&
		(labeled.HasErrorLabel("RetryableWriteError") || labeled.HasErrorLabel("TransientTransactionError")) {
		return true
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(cosmosRequestRateTooLarge) {
		return true
	}
	return false
}

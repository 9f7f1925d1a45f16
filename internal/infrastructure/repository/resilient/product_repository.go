// Package resilient decorates a product repository with retries and a
// circuit breaker. It sits outside the repository so the storage adapters
// stay free of any resilience policy.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mrops-br/product-engine/internal/domain"
	"github.com/sony/gobreaker/v2"
)

var _ domain.ProductRepository = (*ProductRepository)(nil)

// Options configures the decorator.
type Options struct {
	// MaxAttempts bounds the attempts of a retried call, first one included.
	MaxAttempts uint
	// InitialBackoff is the first wait between attempts; it grows exponentially.
	InitialBackoff time.Duration
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// Transient classifies store faults. Only transient faults are retried
	// and counted by the breaker.
	Transient func(error) bool
}

// ProductRepository wraps another domain.ProductRepository.
//
// Reads and the upsert are idempotent and may be retried. Create and Delete are
// attempted once: a retried insert can fail on its own first write, and a
// retried delete would report the product as missing.
type ProductRepository struct {
	next    domain.ProductRepository
	opts    Options
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewProductRepository wraps next with the given options
func NewProductRepository(next domain.ProductRepository, opts Options, logger *slog.Logger) *ProductRepository {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.Transient == nil {
		opts.Transient = func(error) bool { return false }
	}

	st := gobreaker.Settings{
		Name:        "product-store",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > opts.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !opts.Transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &ProductRepository{
		next:    next,
		opts:    opts,
		breaker: gobreaker.NewCircuitBreaker[any](st),
		logger:  logger,
	}
}

type found struct {
	product *domain.Product
	ok      bool
}

// Create is attempted once through the breaker
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	return execute(r.breaker, func() (*domain.Product, error) {
		return r.next.Create(ctx, product)
	})
}

// FindByID retries transient faults; absence is passed through
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, bool, error) {
	res, err := retry(ctx, r, "find_by_id", func() (found, error) {
		p, ok, err := r.next.FindByID(ctx, id)
		return found{p, ok}, err
	})
	return res.product, res.ok, err
}

// FindAll retries transient faults
func (r *ProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	return retry(ctx, r, "find_all", func() ([]*domain.Product, error) {
		return r.next.FindAll(ctx)
	})
}

// Update retries transient faults; the upsert is idempotent
func (r *ProductRepository) Update(ctx context.Context, id string, product *domain.Product) (*domain.Product, bool, error) {
	res, err := retry(ctx, r, "update", func() (found, error) {
		p, ok, err := r.next.Update(ctx, id, product)
		return found{p, ok}, err
	})
	return res.product, res.ok, err
}

// Delete is attempted once through the breaker
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	return execute(r.breaker, func() (bool, error) {
		return r.next.Delete(ctx, id)
	})
}

// retry runs op through the breaker, retrying transient faults with
// exponential backoff. Non-transient faults and an open breaker stop at once.
func retry[T any](ctx context.Context, r *ProductRepository, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if r.opts.InitialBackoff > 0 {
		b.InitialInterval = r.opts.InitialBackoff
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := execute(r.breaker, fn)
		if err == nil {
			return res, nil
		}
		if !r.opts.Transient(err) {
			return res, backoff.Permanent(err)
		}
		r.logger.WarnContext(ctx, "Transient store fault",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.opts.MaxAttempts),
	)
}

// execute runs fn through the breaker. A rejected call is reported as
// domain.ErrStoreUnavailable.
func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	v, _ := res.(T)
	return v, err
}

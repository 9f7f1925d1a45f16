package resilient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mrops-br/product-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("connection reset")
	errPermanent = errors.New("bad document")
)

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

// scriptedRepository fails with the queued errors before answering normally
type scriptedRepository struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	product *domain.Product
}

func (s *scriptedRepository) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedRepository) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedRepository) Create(_ context.Context, p *domain.Product) (*domain.Product, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *scriptedRepository) FindByID(_ context.Context, _ string) (*domain.Product, bool, error) {
	if err := s.next(); err != nil {
		return nil, false, err
	}
	return s.product, s.product != nil, nil
}

func (s *scriptedRepository) FindAll(_ context.Context) ([]*domain.Product, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return []*domain.Product{}, nil
}

func (s *scriptedRepository) Update(_ context.Context, id string, p *domain.Product) (*domain.Product, bool, error) {
	if err := s.next(); err != nil {
		return nil, false, err
	}
	stored := p.Clone()
	stored.ID = id
	return stored, true, nil
}

func (s *scriptedRepository) Delete(_ context.Context, _ string) (bool, error) {
	if err := s.next(); err != nil {
		return false, err
	}
	return true, nil
}

func newTestRepository(next domain.ProductRepository, opts Options) *ProductRepository {
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Millisecond
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = time.Minute
	}
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 100
	}
	opts.Transient = isTransient
	return NewProductRepository(next, opts, slog.New(slog.DiscardHandler))
}

func TestFindByID_RetriesTransientFaults(t *testing.T) {
	// given
	stub := &scriptedRepository{
		errs:    []error{errTransient, errTransient},
		product: &domain.Product{ID: "p-1", Name: "Lamp"},
	}
	repo := newTestRepository(stub, Options{MaxAttempts: 3})

	// when
	product, ok, err := repo.FindByID(context.Background(), "p-1")

	// then
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Lamp", product.Name)
	assert.Equal(t, 3, stub.callCount())
}

func TestFindByID_AbsentIsNotAFault(t *testing.T) {
	stub := &scriptedRepository{}
	repo := newTestRepository(stub, Options{MaxAttempts: 3})

	product, ok, err := repo.FindByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, product)
	assert.Equal(t, 1, stub.callCount())
}

func TestFindAll_GivesUpAfterMaxAttempts(t *testing.T) {
	stub := &scriptedRepository{errs: []error{errTransient, errTransient, errTransient, errTransient}}
	repo := newTestRepository(stub, Options{MaxAttempts: 3})

	_, err := repo.FindAll(context.Background())

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, stub.callCount())
}

func TestUpdate_PermanentFaultIsNotRetried(t *testing.T) {
	stub := &scriptedRepository{errs: []error{errPermanent}}
	repo := newTestRepository(stub, Options{MaxAttempts: 3})

	_, ok, err := repo.Update(context.Background(), "p-1", &domain.Product{Name: "Chair"})

	require.ErrorIs(t, err, errPermanent)
	assert.False(t, ok)
	assert.Equal(t, 1, stub.callCount())
}

func TestUpdate_RetriesTransientFaults(t *testing.T) {
	stub := &scriptedRepository{errs: []error{errTransient}}
	repo := newTestRepository(stub, Options{MaxAttempts: 3})

	updated, ok, err := repo.Update(context.Background(), "p-1", &domain.Product{Name: "Chair"})

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p-1", updated.ID)
	assert.Equal(t, 2, stub.callCount())
}

func TestCreateAndDelete_AreAttemptedOnce(t *testing.T) {
	testCases := []struct {
		name string
		call func(repo *ProductRepository) error
	}{
		{
			name: "create",
			call: func(repo *ProductRepository) error {
				_, err := repo.Create(context.Background(), &domain.Product{ID: "p-1"})
				return err
			},
		},
		{
			name: "delete",
			call: func(repo *ProductRepository) error {
				_, err := repo.Delete(context.Background(), "p-1")
				return err
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &scriptedRepository{errs: []error{errTransient}}
			repo := newTestRepository(stub, Options{MaxAttempts: 5})

			err := tc.call(repo)

			require.ErrorIs(t, err, errTransient)
			assert.Equal(t, 1, stub.callCount())
		})
	}
}

func TestBreaker_OpensOnConsecutiveTransientFaults(t *testing.T) {
	stub := &scriptedRepository{errs: []error{errTransient, errTransient, errTransient}}
	repo := newTestRepository(stub, Options{MaxAttempts: 1, ConsecutiveFailures: 2})
	ctx := context.Background()

	for range 3 {
		_, err := repo.FindAll(ctx)
		require.ErrorIs(t, err, errTransient)
	}

	_, err := repo.FindAll(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 3, stub.callCount(), "an open breaker must not reach the store")

	_, err = repo.Create(ctx, &domain.Product{ID: "p-1"})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 3, stub.callCount())
}

func TestBreaker_IgnoresPermanentFaults(t *testing.T) {
	stub := &scriptedRepository{errs: []error{errPermanent, errPermanent, errPermanent, errPermanent}}
	repo := newTestRepository(stub, Options{MaxAttempts: 1, ConsecutiveFailures: 1})
	ctx := context.Background()

	for range 4 {
		_, err := repo.FindAll(ctx)
		require.ErrorIs(t, err, errPermanent)
	}

	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Equal(t, 5, stub.callCount())
}

func TestNewProductRepository_Defaults(t *testing.T) {
	stub := &scriptedRepository{errs: []error{errTransient}}
	repo := NewProductRepository(stub, Options{}, slog.New(slog.DiscardHandler))

	_, err := repo.FindAll(context.Background())

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, stub.callCount(), "without a classifier nothing is retried")
}

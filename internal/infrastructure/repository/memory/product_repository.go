package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mrops-br/product-engine/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ domain.ProductRepository = (*ProductRepository)(nil)

// ProductRepository is an in-memory implementation of domain.ProductRepository.
// Products are copied on the way in and on the way out.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewProductRepository creates a new in-memory product repository
func NewProductRepository(tracer trace.Tracer, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
		tracer:   tracer,
		logger:   logger,
	}
}

// Create stores a new product, failing if the ID is taken
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", product.ID))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists {
		err := fmt.Errorf("create product %s: %w", product.ID, domain.ErrProductAlreadyExists)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Product already exists")
		return nil, err
	}

	r.products[product.ID] = product.Clone()

	r.logger.DebugContext(ctx, "Product created in repository",
		slog.String("product_id", product.ID),
	)

	span.SetStatus(codes.Ok, "Product created")
	return product.Clone(), nil
}

// FindByID retrieves a product by ID
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, bool, error) {
	_, span := r.tracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	span.SetAttributes(attribute.Bool("product.found", exists))
	if !exists {
		return nil, false, nil
	}
	return product.Clone(), true, nil
}

// FindAll retrieves all products
func (r *ProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	_, span := r.tracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*domain.Product, 0, len(r.products))
	for _, product := range r.products {
		products = append(products, product.Clone())
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	return products, nil
}

// Update replaces or inserts the product stored under id
func (r *ProductRepository) Update(ctx context.Context, id string, product *domain.Product) (*domain.Product, bool, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	stored := product.Clone()
	stored.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.products[id]
	r.products[id] = stored

	r.logger.DebugContext(ctx, "Product upserted in repository",
		slog.String("product_id", id),
		slog.Bool("inserted", !existed),
	)

	return stored.Clone(), true, nil
}

// Delete removes a product and reports whether it was present
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	_, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.products[id]
	delete(r.products, id)

	span.SetAttributes(attribute.Bool("product.deleted", exists))
	return exists, nil
}

package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mrops-br/product-engine/internal/app/dto"
	"github.com/mrops-br/product-engine/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultNotFound = "not_found"
)

// ProductService handles product use cases
type ProductService struct {
	repo                  domain.ProductRepository
	tracer                trace.Tracer
	logger                *slog.Logger
	newID                 func() string
	productCreatedCounter metric.Int64Counter
	productOperations     metric.Int64Counter
}

// NewProductService creates a new product service
func NewProductService(
	repo domain.ProductRepository,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *ProductService {
	productCreatedCounter, _ := meter.Int64Counter(
		"products.created.total",
		metric.WithDescription("Total number of products created"),
	)

	productOperations, _ := meter.Int64Counter(
		"products.operations",
		metric.WithDescription("Total number of product operations"),
	)

	return &ProductService{
		repo:                  repo,
		tracer:                tracer,
		logger:                logger,
		newID:                 uuid.NewString,
		productCreatedCounter: productCreatedCounter,
		productOperations:     productOperations,
	}
}

// CreateProduct stores a new product. A missing ID is replaced by a random UUID,
// a supplied one is kept as is.
func (s *ProductService) CreateProduct(ctx context.Context, req *dto.ProductDto) (*dto.ProductDto, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.CreateProduct")
	defer span.End()

	id := req.ID
	if id == "" {
		id = s.newID()
	}

	span.SetAttributes(
		attribute.String("product.id", id),
		attribute.String("product.name", req.Name),
		attribute.Bool("product.id_generated", req.ID == ""),
	)

	s.logger.InfoContext(ctx, "Creating product",
		slog.String("product_id", id),
		slog.String("name", req.Name),
	)

	created, err := s.repo.Create(ctx, dto.ToProduct(id, req))
	if err != nil {
		s.fail(ctx, span, "create", "Failed to store product", err)
		return nil, err
	}

	s.productCreatedCounter.Add(ctx, 1)
	s.record(ctx, "create", resultSuccess)

	s.logger.InfoContext(ctx, "Product created successfully",
		slog.String("product_id", created.ID),
	)

	span.SetStatus(codes.Ok, "Product created successfully")
	return dto.ToProductDto(created), nil
}

// GetProductByID retrieves a product by ID. The boolean is false when no
// product has that ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*dto.ProductDto, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.GetProductByID")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	s.logger.DebugContext(ctx, "Getting product by ID",
		slog.String("product_id", id),
	)

	product, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.fail(ctx, span, "read", "Failed to retrieve product", err)
		return nil, false, err
	}
	if !found {
		s.logger.WarnContext(ctx, "Product not found",
			slog.String("product_id", id),
		)
		s.record(ctx, "read", resultNotFound)
		span.SetStatus(codes.Ok, "Product not found")
		return nil, false, nil
	}

	s.record(ctx, "read", resultSuccess)
	span.SetStatus(codes.Ok, "Product retrieved successfully")
	return dto.ToProductDto(product), true, nil
}

// ListProducts retrieves all products
func (s *ProductService) ListProducts(ctx context.Context) ([]*dto.ProductDto, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ListProducts")
	defer span.End()

	products, err := s.repo.FindAll(ctx)
	if err != nil {
		s.fail(ctx, span, "list", "Failed to retrieve products", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	s.record(ctx, "list", resultSuccess)

	s.logger.DebugContext(ctx, "Products listed successfully",
		slog.Int("count", len(products)),
	)

	span.SetStatus(codes.Ok, "Products listed successfully")
	return dto.ToProductDtoList(products), nil
}

// UpdateProduct replaces the product stored under id with the dto fields.
// Any ID in the dto is ignored.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, req *dto.ProductDto) (*dto.ProductDto, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.UpdateProduct")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.id", id),
		attribute.String("product.name", req.Name),
	)

	if req.ID != "" && req.ID != id {
		s.logger.DebugContext(ctx, "Ignoring product ID from request body",
			slog.String("product_id", id),
			slog.String("body_id", req.ID),
		)
	}

	updated, found, err := s.repo.Update(ctx, id, dto.ToProduct(id, req))
	if err != nil {
		s.fail(ctx, span, "update", "Failed to update product", err)
		return nil, false, err
	}
	if !found {
		s.logger.WarnContext(ctx, "Product not found for update",
			slog.String("product_id", id),
		)
		s.record(ctx, "update", resultNotFound)
		span.SetStatus(codes.Ok, "Product not found")
		return nil, false, nil
	}

	s.record(ctx, "update", resultSuccess)
	s.logger.InfoContext(ctx, "Product updated successfully",
		slog.String("product_id", id),
	)

	span.SetStatus(codes.Ok, "Product updated successfully")
	return dto.ToProductDto(updated), true, nil
}

// DeleteProduct removes a product and reports whether it existed
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.DeleteProduct")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.fail(ctx, span, "delete", "Failed to delete product", err)
		return false, err
	}
	if !deleted {
		s.logger.WarnContext(ctx, "Product not found for deletion",
			slog.String("product_id", id),
		)
		s.record(ctx, "delete", resultNotFound)
		span.SetStatus(codes.Ok, "Product not found")
		return false, nil
	}

	s.record(ctx, "delete", resultSuccess)
	s.logger.InfoContext(ctx, "Product deleted successfully",
		slog.String("product_id", id),
	)

	span.SetStatus(codes.Ok, "Product deleted successfully")
	return true, nil
}

func (s *ProductService) record(ctx context.Context, operation, result string) {
	s.productOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("result", result),
		),
	)
}

func (s *ProductService) fail(ctx context.Context, span trace.Span, operation, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.ErrorContext(ctx, msg,
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	s.record(ctx, operation, resultFailure)
}

// Package mongo implements the product repository on a MongoDB-compatible
// document store (MongoDB, or Azure Cosmos DB through its MongoDB API).
//
// Every product is one document whose _id is the product ID. The same field
// is the shard key, so each operation below addresses a single partition,
// except FindAll which scans the whole collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrops-br/product-engine/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ domain.ProductRepository = (*ProductRepository)(nil)

// productDocument is the stored shape of a product
type productDocument struct {
	ID          string  `bson:"_id"`
	Name        string  `bson:"name"`
	Description string  `bson:"description"`
	Price       float64 `bson:"price"`
	Stock       int     `bson:"stock"`
}

func toDocument(p *domain.Product) productDocument {
	return productDocument{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func (d productDocument) toProduct() *domain.Product {
	return &domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
	}
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// ProductRepository stores products in a single collection
type ProductRepository struct {
	collection *mongo.Collection
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewProductRepository creates a repository on databaseID.collectionID using a
// shared client. The client is not owned by the repository.
func NewProductRepository(client *mongo.Client, databaseID, collectionID string, tracer trace.Tracer, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		collection: client.Database(databaseID).Collection(collectionID),
		tracer:     tracer,
		logger:     logger.With(slog.String("component", "mongo"), slog.String("collection", collectionID)),
	}
}

// Create inserts a new product document. A duplicate ID is returned as an error.
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", product.ID))

	doc := toDocument(product)
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = errors.Join(domain.ErrProductAlreadyExists, err)
		}
		return nil, r.fail(span, fmt.Errorf("insert product %s: %w", product.ID, err))
	}

	r.logger.DebugContext(ctx, "Product inserted", slog.String("product_id", product.ID))
	span.SetStatus(codes.Ok, "Product inserted")
	return doc.toProduct(), nil
}

// FindByID reads a product by ID. A missing document is reported as false.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, bool, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	var doc productDocument
	err := r.collection.FindOne(ctx, byID(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		span.SetAttributes(attribute.Bool("product.found", false))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, r.fail(span, fmt.Errorf("find product %s: %w", id, err))
	}

	span.SetAttributes(attribute.Bool("product.found", true))
	return doc.toProduct(), true, nil
}

// FindAll drains every batch of a full collection scan into memory.
// Suitable only while the collection stays small.
func (r *ProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()

	cursor, err := r.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, r.fail(span, fmt.Errorf("find products: %w", err))
	}

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.fail(span, fmt.Errorf("read products cursor: %w", err))
	}

	products := make([]*domain.Product, len(docs))
	for i, doc := range docs {
		products[i] = doc.toProduct()
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	return products, nil
}

// Update replaces the document with the given id, inserting it when absent.
func (r *ProductRepository) Update(ctx context.Context, id string, product *domain.Product) (*domain.Product, bool, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	doc := toDocument(product)
	doc.ID = id

	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored productDocument
	err := r.collection.FindOneAndReplace(ctx, byID(id), doc, opts).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// only reachable if the store declined the upsert
		return nil, false, nil
	}
	if err != nil {
		return nil, false, r.fail(span, fmt.Errorf("upsert product %s: %w", id, err))
	}

	span.SetStatus(codes.Ok, "Product upserted")
	return stored.toProduct(), true, nil
}

// Delete removes the document and reports whether one matched.
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("product.id", id))

	res, err := r.collection.DeleteOne(ctx, byID(id))
	if err != nil {
		return false, r.fail(span, fmt.Errorf("delete product %s: %w", id, err))
	}

	deleted := res.DeletedCount > 0
	span.SetAttributes(attribute.Bool("product.deleted", deleted))
	return deleted, nil
}

func (r *ProductRepository) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

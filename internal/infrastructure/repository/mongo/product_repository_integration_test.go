package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mrops-br/product-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/trace/noop"
)

const skipIntegrationTests = "PRODUCTS_SKIP_INTEGRATION_TESTS"

// ProductRepositorySuite runs the repository against a real MongoDB container.
type ProductRepositorySuite struct {
	suite.Suite
	container *mongodb.MongoDBContainer
	client    *mongo.Client
	repo      *ProductRepository
	logger    *slog.Logger
	ctx       context.Context
}

func (s *ProductRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.container, err = mongodb.Run(s.ctx, "mongo:7")
	require.NoError(s.T(), err, "Failed to run MongoDB container")

	uri, err := s.container.ConnectionString(s.ctx)
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.client, err = NewClient(s.ctx, uri, 30*time.Second, noop.NewTracerProvider())
	require.NoError(s.T(), err, "Failed to connect to MongoDB")

	s.repo = NewProductRepository(s.client, "product-engine-test", "products", noop.NewTracerProvider().Tracer("test"), s.logger)
}

func (s *ProductRepositorySuite) TearDownSuite() {
	if s.client != nil {
		if err := s.client.Disconnect(s.ctx); err != nil {
			s.logger.Warn("failed to disconnect client", "error", err)
		}
	}
	if s.container != nil {
		if err := testcontainers.TerminateContainer(s.container); err != nil {
			s.logger.Warn("failed to terminate MongoDB container", "error", err)
		}
	}
}

// SetupTest empties the collection before each test
func (s *ProductRepositorySuite) SetupTest() {
	_, err := s.repo.collection.DeleteMany(s.ctx, bson.D{})
	require.NoError(s.T(), err, "Failed to clean products collection")
}

func TestProductRepositoryIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(ProductRepositorySuite))
}

func (s *ProductRepositorySuite) createTestProduct(id, name string) *domain.Product {
	s.T().Helper()
	product, err := s.repo.Create(s.ctx, &domain.Product{ID: id, Name: name, Description: "test", Price: 9.99, Stock: 5})
	require.NoError(s.T(), err, "createTestProduct helper failed to create product")
	return product
}

func (s *ProductRepositorySuite) TestCreateAndFindByID() {
	toCreate := &domain.Product{ID: "p-1", Name: "Monitor", Description: "27 inch", Price: 249.5, Stock: 7}

	created, err := s.repo.Create(s.ctx, toCreate)
	require.NoError(s.T(), err)
	require.Equal(s.T(), toCreate, created)

	fetched, ok, err := s.repo.FindByID(s.ctx, "p-1")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), toCreate, fetched)
}

func (s *ProductRepositorySuite) TestCreate_DuplicateID() {
	s.createTestProduct("p-1", "First")

	_, err := s.repo.Create(s.ctx, &domain.Product{ID: "p-1", Name: "Second"})
	require.ErrorIs(s.T(), err, domain.ErrProductAlreadyExists)

	fetched, ok, err := s.repo.FindByID(s.ctx, "p-1")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "First", fetched.Name)
}

func (s *ProductRepositorySuite) TestFindByID_NotFound() {
	fetched, ok, err := s.repo.FindByID(s.ctx, "missing")

	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
	assert.Nil(s.T(), fetched)
}

func (s *ProductRepositorySuite) TestFindAll() {
	empty, err := s.repo.FindAll(s.ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), empty)

	s.createTestProduct("p-1", "Product A")
	s.createTestProduct("p-2", "Product B")

	products, err := s.repo.FindAll(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), products, 2)

	names := []string{products[0].Name, products[1].Name}
	assert.ElementsMatch(s.T(), []string{"Product A", "Product B"}, names)
}

func (s *ProductRepositorySuite) TestUpdate_ReplacesExisting() {
	s.createTestProduct("p-1", "Old name")

	updated, ok, err := s.repo.Update(s.ctx, "p-1", &domain.Product{ID: "ignored", Name: "New name", Price: 1.5, Stock: 2})
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), &domain.Product{ID: "p-1", Name: "New name", Price: 1.5, Stock: 2}, updated)

	fetched, _, err := s.repo.FindByID(s.ctx, "p-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), updated, fetched)

	count, err := s.repo.collection.CountDocuments(s.ctx, bson.D{})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, count)
}

func (s *ProductRepositorySuite) TestUpdate_InsertsWhenAbsent() {
	updated, ok, err := s.repo.Update(s.ctx, "p-new", &domain.Product{Name: "Upserted"})
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "p-new", updated.ID)

	fetched, ok, err := s.repo.FindByID(s.ctx, "p-new")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "Upserted", fetched.Name)
}

func (s *ProductRepositorySuite) TestDelete() {
	s.createTestProduct("p-1", "Doomed")

	deleted, err := s.repo.Delete(s.ctx, "p-1")
	require.NoError(s.T(), err)
	assert.True(s.T(), deleted)

	_, ok, err := s.repo.FindByID(s.ctx, "p-1")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *ProductRepositorySuite) TestDelete_NotFound() {
	deleted, err := s.repo.Delete(s.ctx, "missing")

	require.NoError(s.T(), err)
	assert.False(s.T(), deleted)
}

func (s *ProductRepositorySuite) TestStoreFault_CancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, ok, err := s.repo.FindByID(ctx, "p-1")
	require.Error(s.T(), err)
	assert.False(s.T(), ok)
}

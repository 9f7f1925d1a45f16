package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mrops-br/product-engine/internal/app/dto"
	"github.com/mrops-br/product-engine/internal/domain"
	"github.com/mrops-br/product-engine/internal/infrastructure/http/response"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errTrailingData = errors.New("unexpected data after product body")
)

// ProductService is the set of product use cases the handler drives
type ProductService interface {
	CreateProduct(ctx context.Context, req *dto.ProductDto) (*dto.ProductDto, error)
	GetProductByID(ctx context.Context, id string) (*dto.ProductDto, bool, error)
	ListProducts(ctx context.Context) ([]*dto.ProductDto, error)
	UpdateProduct(ctx context.Context, id string, req *dto.ProductDto) (*dto.ProductDto, bool, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)
}

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	service ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With(slog.String("component", "http")),
	}
}

// RegisterRoutes mounts the product resource on r
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
	})
}

// CreateProduct handles POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, err := decodeProduct(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body",
			slog.String("error", err.Error()),
		)
		response.Status(w, http.StatusBadRequest)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		h.storeFault(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, product)
}

// GetProduct handles GET /products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, found, err := h.service.GetProductByID(r.Context(), id)
	if err != nil {
		h.storeFault(w, r, err)
		return
	}
	if !found {
		response.Status(w, http.StatusNotFound)
		return
	}

	response.JSON(w, http.StatusOK, product)
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.storeFault(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, products)
}

// UpdateProduct handles PUT /products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := decodeProduct(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		response.Status(w, http.StatusBadRequest)
		return
	}

	product, found, err := h.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.storeFault(w, r, err)
		return
	}
	if !found {
		response.Status(w, http.StatusNotFound)
		return
	}

	response.JSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.DeleteProduct(r.Context(), id)
	if err != nil {
		h.storeFault(w, r, err)
		return
	}
	if !deleted {
		response.Status(w, http.StatusNotFound)
		return
	}

	response.Status(w, http.StatusNoContent)
}

// storeFault answers with a 5xx. The store error itself is logged, not returned.
func (h *ProductHandler) storeFault(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "Product store fault",
		slog.String("method", r.Method),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, domain.ErrStoreUnavailable) {
		response.Error(w, http.StatusServiceUnavailable, domain.ErrStoreUnavailable)
		return
	}
	response.Error(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
}

// decodeProduct reads a ProductDto body. An empty body, a JSON null or anything
// but whitespace after the object is an error.
func decodeProduct(r *http.Request) (*dto.ProductDto, error) {
	if r.Body == nil {
		return nil, errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	var body *dto.ProductDto
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid product body: %w", err)
	}
	if body == nil {
		return nil, errEmptyBody
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return body, nil
}

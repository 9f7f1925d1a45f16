package domain

import (
	"context"
)

// ProductRepository defines the contract for product storage.
//
// A missing product is reported through the boolean results, never through
// the error. Any error returned is a storage fault and is passed on as is.
type ProductRepository interface {
	// Create stores a new product. The product ID must be populated.
	Create(ctx context.Context, product *Product) (*Product, error)
	// FindByID returns the product with the given ID, or false if there is none.
	FindByID(ctx context.Context, id string) (*Product, bool, error)
	// FindAll returns every stored product in the store's natural order.
	FindAll(ctx context.Context) ([]*Product, error)
	// Update replaces the product stored under id, creating it when missing.
	// The id argument wins over product.ID.
	Update(ctx context.Context, id string, product *Product) (*Product, bool, error)
	// Delete removes the product and reports whether one existed.
	Delete(ctx context.Context, id string) (bool, error)
}

package domain

import "errors"

var (
	ErrProductAlreadyExists = errors.New("product already exists")
	ErrStoreUnavailable     = errors.New("product store unavailable")
)

// Product represents the product entity.
// ID is the sole lookup key and never changes once the product is stored.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Stock       int
}

// Clone returns a copy that shares no memory with p
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

package dto

import (
	"github.com/mrops-br/product-engine/internal/domain"
)

// ProductDto is the wire representation of a product.
// ID is optional on create and ignored on update.
type ProductDto struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// ToProductDto converts a domain Product to ProductDto
func ToProductDto(p *domain.Product) *ProductDto {
	return &ProductDto{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

// ToProductDtoList converts a list of domain Products to a ProductDto list.
// The result is never nil so it always encodes as a JSON array.
func ToProductDtoList(products []*domain.Product) []*ProductDto {
	dtos := make([]*ProductDto, len(products))
	for i, p := range products {
		dtos[i] = ToProductDto(p)
	}
	return dtos
}

// ToProduct builds a domain Product from the dto using the given id
func ToProduct(id string, d *ProductDto) *domain.Product {
	return &domain.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
	}
}

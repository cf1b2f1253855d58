package crm

import (
	"context"
	"fmt"
	"log"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/validation"
)

// CreateProduct validates price then stock (default 0) and stores the product.
func (s *Service) CreateProduct(ctx context.Context, in validation.ProductInput) (ProductResult, error) {
	if in.Price == nil {
		return ProductResult{Errors: []string{validation.ErrInvalidPrice.Message}}, nil
	}
	if err := validation.ValidatePrice(*in.Price); err != nil {
		return ProductResult{Errors: []string{err.Error()}}, nil
	}

	stock := 0
	if in.Stock != nil {
		stock = *in.Stock
	}
	if err := validation.ValidateStock(stock); err != nil {
		return ProductResult{Errors: []string{err.Error()}}, nil
	}

	p := &domain.Product{
		ID:    s.newID(),
		Name:  in.Name,
		Price: *in.Price,
		Stock: stock,
	}
	if err := s.repo.InsertProduct(ctx, p); err != nil {
		return ProductResult{}, fmt.Errorf("insert product: %w", err)
	}
	return ProductResult{Product: p}, nil
}

// UpdateLowStockProducts adds RestockAmount to every product whose stock is
// below LowStockThreshold and returns the updated products. Each product is
// updated atomically on its own.
func (s *Service) UpdateLowStockProducts(ctx context.Context) (RestockResult, error) {
	updated, err := s.repo.RestockBelow(ctx, LowStockThreshold, RestockAmount)
	if err != nil {
		return RestockResult{}, fmt.Errorf("restock low stock products: %w", err)
	}
	if updated == nil {
		updated = []domain.Product{}
	}

	log.Printf("[crm] restocked %d low stock product(s)", len(updated))
	return RestockResult{
		Message:  fmt.Sprintf("%d product(s) restocked successfully.", len(updated)),
		Products: updated,
	}, nil
}

package crm

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/validation"
)

// CreateOrder checks, in order: the customer exists, at least one product
// was given, and every product id resolves to a distinct stored product.
// The total is the exact sum of the product prices at this moment.
func (s *Service) CreateOrder(ctx context.Context, in validation.OrderInput) (OrderResult, error) {
	customer, err := s.repo.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return orderFailure(validation.ErrInvalidCustomer), nil
	}

	if len(in.ProductIDs) == 0 {
		return orderFailure(validation.ErrEmptyProductList), nil
	}

	products, err := s.repo.GetProducts(ctx, in.ProductIDs)
	if err != nil {
		return OrderResult{}, fmt.Errorf("get products: %w", err)
	}
	// duplicates collapse in the lookup, so they fail here too
	if len(products) != len(in.ProductIDs) {
		return orderFailure(validation.ErrInvalidProductIDs), nil
	}

	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}

	orderDate := s.nowFunc()
	if in.OrderDate != nil {
		orderDate = *in.OrderDate
	}

	order := &domain.Order{
		ID:          s.newID(),
		CustomerID:  customer.ID,
		ProductIDs:  append([]string(nil), in.ProductIDs...),
		TotalAmount: total,
		OrderDate:   orderDate,
	}
	if err := s.repo.InsertOrder(ctx, order); err != nil {
		return OrderResult{}, fmt.Errorf("insert order: %w", err)
	}

	return OrderResult{Order: &domain.OrderDetail{
		ID:          order.ID,
		Customer:    *customer,
		Products:    orderedProducts(in.ProductIDs, products),
		TotalAmount: total,
		OrderDate:   orderDate,
	}}, nil
}

func orderFailure(verr *validation.Error) OrderResult {
	return OrderResult{Errors: []string{verr.Message}}
}

// orderedProducts returns products in the order of ids.
func orderedProducts(ids []string, products []domain.Product) []domain.Product {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

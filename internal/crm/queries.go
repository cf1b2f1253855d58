package crm

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

func (s *Service) Hello() string { return HelloMessage }

func (s *Service) Customers(ctx context.Context) ([]domain.Customer, error) {
	out, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	out, err := s.repo.ListProducts(ctx, store.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// Orders returns the orders matching filter with their customer and products.
func (s *Service) Orders(ctx context.Context, filter store.OrderFilter) ([]domain.OrderDetail, error) {
	var (
		orders    []domain.Order
		customers []domain.Customer
		products  []domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.repo.ListOrders(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		customers, err = s.repo.ListCustomers(gctx)
		return err
	})
	g.Go(func() (err error) {
		products, err = s.repo.ListProducts(gctx, store.ProductFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	customerByID := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerByID[c.ID] = c
	}

	out := make([]domain.OrderDetail, 0, len(orders))
	for _, o := range orders {
		customer, ok := customerByID[o.CustomerID]
		if !ok {
			customer = domain.Customer{ID: o.CustomerID}
		}
		out = append(out, domain.OrderDetail{
			ID:          o.ID,
			Customer:    customer,
			Products:    orderedProducts(o.ProductIDs, products),
			TotalAmount: o.TotalAmount,
			OrderDate:   o.OrderDate,
		})
	}
	return out, nil
}

// Stats counts customers and orders and sums order totals. Revenue is zero
// when there are no orders.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	var (
		customers []domain.Customer
		orders    []domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		customers, err = s.repo.ListCustomers(gctx)
		return err
	})
	g.Go(func() (err error) {
		orders, err = s.repo.ListOrders(gctx, store.OrderFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}

	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	return domain.Stats{
		CustomersCount:     len(customers),
		OrdersCount:        len(orders),
		OrdersTotalRevenue: revenue,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/validation"
)

var seedCustomers = []validation.CustomerInput{
	{Name: "Alice", Email: "alice@example.com", Phone: "+1234567890"},
	{Name: "Bob", Email: "bob@example.com", Phone: "123-456-7890"},
	{Name: "Carol", Email: "carol@example.com"},
}

type seedProduct struct {
	Name  string
	Price string
	Stock int
}

var seedProducts = []seedProduct{
	{Name: "Laptop", Price: "999.99", Stock: 10},
	{Name: "Phone", Price: "499.99", Stock: 20},
	{Name: "Tablet", Price: "299.99", Stock: 15},
}

// Summary counts what a seed run created and what already existed.
type Summary struct {
	CustomersCreated int
	CustomersExisted int
	ProductsCreated  int
	ProductsExisted  int
}

// Seed inserts the demo customers and products that are not already there.
// Customers match by email and products by name, so running it twice is safe.
func Seed(ctx context.Context, svc *crm.Service) (Summary, error) {
	var sum Summary

	customers, err := svc.Customers(ctx)
	if err != nil {
		return sum, fmt.Errorf("list customers: %w", err)
	}
	emails := make(map[string]bool, len(customers))
	for _, c := range customers {
		emails[strings.ToLower(c.Email)] = true
	}
	for _, in := range seedCustomers {
		if emails[strings.ToLower(in.Email)] {
			sum.CustomersExisted++
			continue
		}
		res, err := svc.CreateCustomer(ctx, in)
		if err != nil {
			return sum, fmt.Errorf("create customer %s: %w", in.Email, err)
		}
		if len(res.Errors) > 0 {
			return sum, fmt.Errorf("create customer %s: %s", in.Email, strings.Join(res.Errors, "; "))
		}
		log.Printf("[seed] created customer %s", in.Email)
		sum.CustomersCreated++
	}

	products, err := svc.Products(ctx)
	if err != nil {
		return sum, fmt.Errorf("list products: %w", err)
	}
	names := make(map[string]bool, len(products))
	for _, p := range products {
		names[p.Name] = true
	}
	for _, sp := range seedProducts {
		if names[sp.Name] {
			sum.ProductsExisted++
			continue
		}
		price := decimal.RequireFromString(sp.Price)
		stock := sp.Stock
		res, err := svc.CreateProduct(ctx, validation.ProductInput{Name: sp.Name, Price: &price, Stock: &stock})
		if err != nil {
			return sum, fmt.Errorf("create product %s: %w", sp.Name, err)
		}
		if len(res.Errors) > 0 {
			return sum, fmt.Errorf("create product %s: %s", sp.Name, strings.Join(res.Errors, "; "))
		}
		log.Printf("[seed] created product %s", sp.Name)
		sum.ProductsCreated++
	}
	return sum, nil
}

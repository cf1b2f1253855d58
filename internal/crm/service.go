// Package crm implements the CRM commands (customer, product and order
// creation, low-stock restocking) and the read-side queries.
package crm

import (
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

const (
	// LowStockThreshold: products with stock strictly below it are restocked.
	LowStockThreshold = 10
	// RestockAmount is added to each low-stock product.
	RestockAmount = 10

	HelloMessage = "Hello, CRM!"
)

// Service runs CRM commands and queries against a Repository.
//
// Commands report validation failures in their result's Errors and never as
// the returned error; a non-nil error always means an infrastructure failure.
type Service struct {
	repo    store.Repository
	nowFunc func() time.Time
	newID   func() string
}

func NewService(repo store.Repository) *Service {
	return &Service{
		repo:    repo,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// CustomerResult is the outcome of CreateCustomer.
type CustomerResult struct {
	Customer *domain.Customer `json:"customer,omitempty"`
	Message  string           `json:"message,omitempty"`
	Errors   []string         `json:"errors,omitempty"`
}

// BulkCustomersResult is the outcome of BulkCreateCustomers. Both lists are
// always present, in input order.
type BulkCustomersResult struct {
	Customers []domain.Customer `json:"customers"`
	Errors    []string          `json:"errors"`
}

// ProductResult is the outcome of CreateProduct.
type ProductResult struct {
	Product *domain.Product `json:"product,omitempty"`
	Errors  []string        `json:"errors,omitempty"`
}

// OrderResult is the outcome of CreateOrder.
type OrderResult struct {
	Order  *domain.OrderDetail `json:"order,omitempty"`
	Errors []string            `json:"errors,omitempty"`
}

// RestockResult is the outcome of UpdateLowStockProducts.
type RestockResult struct {
	Message  string           `json:"message"`
	Products []domain.Product `json:"products"`
}

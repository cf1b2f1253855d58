package validation

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerInput is the payload for creating one customer.
type CustomerInput struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty"` // optional; format checked by ValidatePhone
}

// BulkCustomersInput is the payload for POST /customers/bulk. An empty list is
// allowed. Entries are not validated here: CheckCustomer reports a bad entry
// as that entry's error without failing the batch.
type BulkCustomersInput struct {
	Customers []CustomerInput `json:"customers" validate:"required"`
}

// ProductInput is the payload for POST /products.
type ProductInput struct {
	Name  string           `json:"name" validate:"notblank"`
	Price *decimal.Decimal `json:"price" validate:"required"` // > 0, checked by ValidatePrice
	Stock *int             `json:"stock,omitempty"`           // defaults to 0
}

// OrderInput is the payload for POST /orders. An empty product_ids list passes
// shape validation and is rejected by the order command.
type OrderInput struct {
	CustomerID string     `json:"customer_id" validate:"required"`
	ProductIDs []string   `json:"product_ids" validate:"required"`
	OrderDate  *time.Time `json:"order_date,omitempty"` // defaults to now
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a CRM contact. Email is unique across all customers.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"` // empty when not provided
}

// Product is a sellable item. Stock is never negative.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Order links one customer to a non-empty set of products. TotalAmount is
// frozen at creation and not recomputed when prices change later.
type Order struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	ProductIDs  []string        `json:"product_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderDate   time.Time       `json:"order_date"`
}

// OrderDetail is an Order hydrated with its customer and products.
type OrderDetail struct {
	ID          string          `json:"id"`
	Customer    Customer        `json:"customer"`
	Products    []Product       `json:"products"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderDate   time.Time       `json:"order_date"`
}

// Stats holds the aggregate figures used by the weekly report.
type Stats struct {
	CustomersCount     int             `json:"customers_count"`
	OrdersCount        int             `json:"orders_count"`
	OrdersTotalRevenue decimal.Decimal `json:"orders_total_revenue"`
}

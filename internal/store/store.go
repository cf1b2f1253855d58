// Package store holds the CRM repository contract and its DynamoDB, SQLite
// and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
)

var (
	// ErrNotFound is returned when an update targets a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned by InsertCustomer when the email is already stored.
	ErrEmailTaken = errors.New("email already exists")
	// ErrTransactionTooLarge is returned when a DynamoDB transaction would exceed
	// the service limit on items per TransactWriteItems call.
	ErrTransactionTooLarge = errors.New("transaction too large")
)

// OrderDateLayout is the fixed-width UTC layout used wherever order dates are
// stored as text, so lexical comparison matches chronological order.
const OrderDateLayout = "2006-01-02T15:04:05.000000000Z"

// Repository is the persistence contract consumed by the CRM service.
// Lookups return (nil, nil) when the record is absent.
type Repository interface {
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	// GetProducts returns the stored products among ids, each at most once.
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)

	InsertCustomer(ctx context.Context, c *domain.Customer) error
	InsertProduct(ctx context.Context, p *domain.Product) error
	InsertOrder(ctx context.Context, o *domain.Order) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	// RestockBelow adds amount to the stock of every product whose stock is
	// below threshold and returns the updated products in listing order. Each
	// increment is atomic; the set as a whole is not.
	RestockBelow(ctx context.Context, threshold, amount int) ([]domain.Product, error)

	// RunInTransaction runs fn against a transactional view of the repository.
	// Writes made through tx are committed together when fn returns nil and
	// discarded when it returns an error. Calling RunInTransaction on tx joins
	// the outer transaction.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	Close() error
}

// ProductFilter narrows ListProducts. The zero value matches every product.
type ProductFilter struct {
	StockBelow *int
}

// Match reports whether p passes the filter.
func (f ProductFilter) Match(p domain.Product) bool {
	if f.StockBelow != nil && p.Stock >= *f.StockBelow {
		return false
	}
	return true
}

// OrderFilter narrows ListOrders to an inclusive order_date window.
// The zero value matches every order.
type OrderFilter struct {
	From *time.Time
	To   *time.Time
}

// Match reports whether o passes the filter.
func (f OrderFilter) Match(o domain.Order) bool {
	if f.From != nil && o.OrderDate.Before(*f.From) {
		return false
	}
	if f.To != nil && o.OrderDate.After(*f.To) {
		return false
	}
	return true
}

// FormatOrderDate renders t with OrderDateLayout.
func FormatOrderDate(t time.Time) string {
	return t.UTC().Format(OrderDateLayout)
}

// ParseOrderDate parses a value written by FormatOrderDate.
func ParseOrderDate(s string) (time.Time, error) {
	return time.Parse(OrderDateLayout, s)
}

// IntPtr is a small helper for building filters.
func IntPtr(v int) *int { return &v }

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

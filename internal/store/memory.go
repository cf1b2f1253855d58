package store

import (
	"context"
	"sync"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
)

// MemoryStore is a process-local Repository. It backs local runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	emails    map[string]string // email -> customer id

	// insertion order, so lists are stable
	customerIDs []string
	productIDs  []string
	orderIDs    []string
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		emails:    make(map[string]string),
	}
}

// transaction-aware locking helpers: inside RunInTransaction the write lock
// is already held for the whole callback.
type txKey struct{}

func isTx(ctx context.Context) bool {
	b, ok := ctx.Value(txKey{}).(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

func (m *MemoryStore) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	id, ok := m.emails[email]
	if !ok {
		return nil, nil
	}
	c := m.customers[id]
	return &c, nil
}

func (m *MemoryStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStore) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Customer, 0, len(m.customerIDs))
	for _, id := range m.customerIDs {
		out = append(out, m.customers[id])
	}
	return out, nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, id := range m.productIDs {
		if p := m.products[id]; filter.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, id := range m.orderIDs {
		if o := m.orders[id]; filter.Match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.emails[c.Email]; ok {
		return ErrEmailTaken
	}
	m.customers[c.ID] = *c
	m.emails[c.Email] = c.ID
	m.customerIDs = append(m.customerIDs, c.ID)
	return nil
}

func (m *MemoryStore) InsertProduct(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.products[p.ID] = *p
	m.productIDs = append(m.productIDs, p.ID)
	return nil
}

func (m *MemoryStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.orders[o.ID] = cloneOrder(*o)
	m.orderIDs = append(m.orderIDs, o.ID)
	return nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) RestockBelow(ctx context.Context, threshold, amount int) ([]domain.Product, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	out := make([]domain.Product, 0)
	for _, id := range m.productIDs {
		p := m.products[id]
		if p.Stock >= threshold {
			continue
		}
		p.Stock += amount
		m.products[id] = p
		out = append(out, p)
	}
	return out, nil
}

// RunInTransaction holds the write lock for the duration of fn and restores a
// snapshot of the data if fn fails.
func (m *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if isTx(ctx) {
		return fn(ctx, m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true), m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

type memorySnapshot struct {
	customers   map[string]domain.Customer
	products    map[string]domain.Product
	orders      map[string]domain.Order
	emails      map[string]string
	customerIDs []string
	productIDs  []string
	orderIDs    []string
}

// Records are immutable once inserted except products, whose values are
// copied, so a shallow copy of each map is a full snapshot.
func (m *MemoryStore) snapshot() memorySnapshot {
	return memorySnapshot{
		customers:   copyMap(m.customers),
		products:    copyMap(m.products),
		orders:      copyMap(m.orders),
		emails:      copyMap(m.emails),
		customerIDs: append([]string(nil), m.customerIDs...),
		productIDs:  append([]string(nil), m.productIDs...),
		orderIDs:    append([]string(nil), m.orderIDs...),
	}
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.customers = s.customers
	m.products = s.products
	m.orders = s.orders
	m.emails = s.emails
	m.customerIDs = s.customerIDs
	m.productIDs = s.productIDs
	m.orderIDs = s.orderIDs
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	o.ProductIDs = append([]string(nil), o.ProductIDs...)
	return o
}

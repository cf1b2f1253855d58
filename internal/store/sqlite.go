package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStore implements Repository on SQLite. A store returned to a
// RunInTransaction callback shares the database handle and runs every
// statement on the open *sql.Tx.
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

var _ Repository = (*SQLiteStore)(nil)

// sqliteDSN appends the connection pragmas to dbPath so they hold on every
// connection the pool opens, not only the first.
func sqliteDSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + connParams
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}

	// single writer; also keeps a ":memory:" database alive on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check foreign keys: %w", err)
	}
	if fk != 1 {
		_ = db.Close()
		return nil, fmt.Errorf("foreign keys not enabled by %s driver", DriverName)
	}
	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	log.Printf("[store] sqlite ready path=%s driver=%s mode=%s", dbPath, DriverName, BuildMode)
	return &SQLiteStore{db: db, q: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &SQLiteStore{db: s.db, q: tx, tx: tx}

	if err := fn(ctx, txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[store] rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Customers

const customerColumns = "id, name, email, phone"

func scanCustomer(row interface{ Scan(...interface{}) error }) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	c, err := scanCustomer(s.q.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE email = ?", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer by email: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.q.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO customers (id, name, email, phone) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Email, c.Phone)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// Products

const productColumns = "id, name, price, stock"

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...interface{}) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "SELECT " + productColumns + " FROM products WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY rowid"
	out, err := s.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	var args []interface{}
	if filter.StockBelow != nil {
		query += " WHERE stock < ?"
		args = append(args, *filter.StockBelow)
	}
	query += " ORDER BY rowid"

	out, err := s.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) InsertProduct(ctx context.Context, p *domain.Product) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO products (id, name, price, stock) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Price.String(), p.Stock)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE products SET name = ?, price = ?, stock = ? WHERE id = ?",
		p.Name, p.Price.String(), p.Stock, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RestockBelow selects and updates inside one transaction; with a single
// connection nothing can change stock in between.
func (s *SQLiteStore) RestockBelow(ctx context.Context, threshold, amount int) ([]domain.Product, error) {
	var out []domain.Product
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx Repository) error {
		txs := tx.(*SQLiteStore)
		low, err := txs.ListProducts(ctx, ProductFilter{StockBelow: &threshold})
		if err != nil {
			return err
		}
		if len(low) == 0 {
			out = low
			return nil
		}
		if _, err := txs.q.ExecContext(ctx,
			"UPDATE products SET stock = stock + ? WHERE stock < ?", amount, threshold); err != nil {
			return fmt.Errorf("restock products: %w", err)
		}
		for i := range low {
			low[i].Stock += amount
		}
		out = low
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Orders

func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.From != nil {
		where = append(where, "o.order_date >= ?")
		args = append(args, FormatOrderDate(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "o.order_date <= ?")
		args = append(args, FormatOrderDate(*filter.To))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT o.id, o.customer_id, o.total_amount, o.order_date FROM orders o"+cond+" ORDER BY o.rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0)
	index := map[string]int{}
	for rows.Next() {
		var (
			o    domain.Order
			date string
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.TotalAmount, &date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.OrderDate, err = ParseOrderDate(date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse order date %q: %w", date, err)
		}
		o.ProductIDs = []string{}
		index[o.ID] = len(out)
		out = append(out, o)
	}
	// the pool has a single connection; release it before the next query
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	linkRows, err := s.q.QueryContext(ctx,
		"SELECT op.order_id, op.product_id FROM order_products op JOIN orders o ON o.id = op.order_id"+cond+
			" ORDER BY op.order_id, op.position", args...)
	if err != nil {
		return nil, fmt.Errorf("list order products: %w", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var orderID, productID string
		if err := linkRows.Scan(&orderID, &productID); err != nil {
			return nil, fmt.Errorf("scan order product: %w", err)
		}
		if i, ok := index[orderID]; ok {
			out[i].ProductIDs = append(out[i].ProductIDs, productID)
		}
	}
	return out, linkRows.Err()
}

// InsertOrder writes the order and its product links. Outside a transaction
// it opens one so the order is never stored without its products.
func (s *SQLiteStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	return s.RunInTransaction(ctx, func(ctx context.Context, tx Repository) error {
		q := tx.(*SQLiteStore).q
		_, err := q.ExecContext(ctx,
			"INSERT INTO orders (id, customer_id, total_amount, order_date) VALUES (?, ?, ?, ?)",
			o.ID, o.CustomerID, o.TotalAmount.String(), FormatOrderDate(o.OrderDate))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, pid := range o.ProductIDs {
			if _, err := q.ExecContext(ctx,
				"INSERT INTO order_products (order_id, product_id, position) VALUES (?, ?, ?)",
				o.ID, pid, i); err != nil {
				return fmt.Errorf("insert order product: %w", err)
			}
		}
		return nil
	})
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Both drivers report "UNIQUE constraint failed: <table>.<column>".
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

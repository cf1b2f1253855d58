package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Options selects and configures a Repository implementation.
type Options struct {
	Backend    string
	SQLitePath string
	Tables     DynamoTables
	DynamoDB   aws.DynamoDBAPI
}

// Open returns the Repository named by opts.Backend ("" means memory).
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Backend {
	case "", BackendMemory:
		log.Printf("[store] using in-memory repository")
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case BackendDynamoDB:
		if opts.DynamoDB == nil {
			return nil, errors.New("dynamodb backend requires a client")
		}
		t := opts.Tables
		if t.Customers == "" || t.Emails == "" || t.Products == "" || t.Orders == "" {
			return nil, errors.New("dynamodb backend requires customers, emails, products and orders tables")
		}
		log.Printf("[store] using dynamodb repository customers=%s products=%s orders=%s", t.Customers, t.Products, t.Orders)
		return NewDynamoStore(opts.DynamoDB, t), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

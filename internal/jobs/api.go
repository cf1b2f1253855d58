package jobs

import (
	"context"
	"time"

	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

// API is the CRM surface the jobs depend on. internal/client implements it
// over HTTP; ServiceAPI implements it in process.
type API interface {
	Hello(ctx context.Context) (string, error)
	Orders(ctx context.Context, from, to time.Time) ([]domain.OrderDetail, error)
	Stats(ctx context.Context) (domain.Stats, error)
	RestockLowStock(ctx context.Context) (crm.RestockResult, error)
}

// ServiceAPI adapts a crm.Service to API, for running jobs next to the store
// without going through the HTTP API.
type ServiceAPI struct {
	Service *crm.Service
}

var _ API = ServiceAPI{}

func (a ServiceAPI) Hello(ctx context.Context) (string, error) {
	return a.Service.Hello(), nil
}

func (a ServiceAPI) Orders(ctx context.Context, from, to time.Time) ([]domain.OrderDetail, error) {
	return a.Service.Orders(ctx, store.OrderFilter{From: &from, To: &to})
}

func (a ServiceAPI) Stats(ctx context.Context) (domain.Stats, error) {
	return a.Service.Stats(ctx)
}

func (a ServiceAPI) RestockLowStock(ctx context.Context) (crm.RestockResult, error) {
	return a.Service.UpdateLowStockProducts(ctx)
}

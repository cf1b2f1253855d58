package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// LowStockRestock triggers the restock mutation and logs each updated product.
type LowStockRestock struct {
	API     API
	Sink    Sink
	nowFunc func() time.Time
}

func NewLowStockRestock(api API, sink Sink) *LowStockRestock {
	return &LowStockRestock{API: api, Sink: sink, nowFunc: time.Now}
}

func (l *LowStockRestock) Name() string { return NameLowStockRestock }

func (l *LowStockRestock) Run(ctx context.Context) error {
	res, err := l.API.RestockLowStock(ctx)
	if err != nil {
		line := fmt.Sprintf("%s - Error updating low stock products: %v", l.nowFunc().Format(reportLayout), err)
		if werr := l.Sink.Write(line); werr != nil {
			log.Printf("[jobs] low_stock_restock: write error line: %v", werr)
		}
		return fmt.Errorf("restock: %w", err)
	}

	ts := l.nowFunc().Format(reportLayout)
	if err := l.Sink.Write(fmt.Sprintf("%s - %s", ts, res.Message)); err != nil {
		return err
	}
	for _, p := range res.Products {
		if err := l.Sink.Write(fmt.Sprintf("%s - Updated %s: new stock %d", ts, p.Name, p.Stock)); err != nil {
			return err
		}
	}
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

const reportLayout = "2006-01-02 15:04:05"

// WeeklyReport writes the customer, order and revenue totals.
type WeeklyReport struct {
	API     API
	Sink    Sink
	nowFunc func() time.Time
}

func NewWeeklyReport(api API, sink Sink) *WeeklyReport {
	return &WeeklyReport{API: api, Sink: sink, nowFunc: time.Now}
}

func (w *WeeklyReport) Name() string { return NameWeeklyReport }

func (w *WeeklyReport) Run(ctx context.Context) error {
	stats, err := w.API.Stats(ctx)
	if err != nil {
		line := fmt.Sprintf("%s - Error generating report: %v", w.nowFunc().Format(reportLayout), err)
		if werr := w.Sink.Write(line); werr != nil {
			log.Printf("[jobs] weekly_report: write error line: %v", werr)
		}
		return fmt.Errorf("stats: %w", err)
	}

	line := fmt.Sprintf("%s - Report: %d customers, %d orders, %s revenue",
		w.nowFunc().Format(reportLayout), stats.CustomersCount, stats.OrdersCount, stats.OrdersTotalRevenue.String())
	return w.Sink.Write(line)
}

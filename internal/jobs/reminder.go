package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	reminderLayout = "2006-01-02 15:04:05,000"
	// ReminderWindowDays is how many days back, before today, reminders cover.
	ReminderWindowDays = 7
)

// OrderReminder writes one reminder line per order placed in the trailing
// week, today included.
type OrderReminder struct {
	API     API
	Sink    Sink
	nowFunc func() time.Time
}

func NewOrderReminder(api API, sink Sink) *OrderReminder {
	return &OrderReminder{API: api, Sink: sink, nowFunc: time.Now}
}

func (r *OrderReminder) Name() string { return NameOrderReminders }

// ReminderWindow returns [start of today-7 days, end of today] in now's location.
func ReminderWindow(now time.Time) (from, to time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from = today.AddDate(0, 0, -ReminderWindowDays)
	to = today.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return from, to
}

func (r *OrderReminder) Run(ctx context.Context) error {
	now := r.nowFunc()
	from, to := ReminderWindow(now)

	orders, err := r.API.Orders(ctx, from, to)
	if err != nil {
		line := fmt.Sprintf("%s - Error processing order reminders: %v", r.nowFunc().Format(reminderLayout), err)
		if werr := r.Sink.Write(line); werr != nil {
			log.Printf("[jobs] order_reminders: write error line: %v", werr)
		}
		return fmt.Errorf("list orders: %w", err)
	}

	if len(orders) == 0 {
		line := fmt.Sprintf("%s - No orders found in the past %d days.", now.Format(reminderLayout), ReminderWindowDays)
		return r.Sink.Write(line)
	}

	for _, o := range orders {
		line := fmt.Sprintf("%s - Reminder sent for Order ID: %s, Customer: %s",
			r.nowFunc().Format(reminderLayout), o.ID, o.Customer.Email)
		if err := r.Sink.Write(line); err != nil {
			return fmt.Errorf("write reminder: %w", err)
		}
	}
	log.Printf("[jobs] order_reminders: processed %d order(s)", len(orders))
	return nil
}

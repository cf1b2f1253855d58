package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const (
	NameHeartbeat       = "heartbeat"
	NameOrderReminders  = "order_reminders"
	NameWeeklyReport    = "weekly_report"
	NameLowStockRestock = "low_stock_restock"
)

// Names lists every job this package provides.
var Names = []string{NameHeartbeat, NameOrderReminders, NameWeeklyReport, NameLowStockRestock}

// IsKnown reports whether name is one of Names.
func IsKnown(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// LogPaths are the files each job's FileSink appends to.
type LogPaths struct {
	Heartbeat      string
	OrderReminders string
	WeeklyReport   string
	LowStock       string
}

// DefaultLogPaths are used for any path left empty.
var DefaultLogPaths = LogPaths{
	Heartbeat:      "/tmp/crm_heartbeat_log.txt",
	OrderReminders: "/tmp/order_reminders_log.txt",
	WeeklyReport:   "/tmp/crm_report_log.txt",
	LowStock:       "/tmp/low_stock_updates_log.txt",
}

func (p LogPaths) withDefaults() LogPaths {
	if p.Heartbeat == "" {
		p.Heartbeat = DefaultLogPaths.Heartbeat
	}
	if p.OrderReminders == "" {
		p.OrderReminders = DefaultLogPaths.OrderReminders
	}
	if p.WeeklyReport == "" {
		p.WeeklyReport = DefaultLogPaths.WeeklyReport
	}
	if p.LowStock == "" {
		p.LowStock = DefaultLogPaths.LowStock
	}
	return p
}

// Registry maps job names to jobs.
type Registry map[string]Job

// NewRegistry indexes jobs by Name.
func NewRegistry(jobs ...Job) Registry {
	r := Registry{}
	for _, j := range jobs {
		r[j.Name()] = j
	}
	return r
}

// DefaultRegistry wires all jobs to api with file sinks at paths.
func DefaultRegistry(api API, paths LogPaths) Registry {
	paths = paths.withDefaults()
	return NewRegistry(
		NewHeartbeat(api, NewFileSink(paths.Heartbeat)),
		NewOrderReminder(api, NewFileSink(paths.OrderReminders)),
		NewWeeklyReport(api, NewFileSink(paths.WeeklyReport)),
		NewLowStockRestock(api, NewFileSink(paths.LowStock)),
	)
}

// Get returns the named job.
func (r Registry) Get(name string) (Job, bool) {
	j, ok := r[name]
	return j, ok
}

// Names returns the registered job names, sorted.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for n := range r {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RunByName runs the named job through runner.
func (r Registry) RunByName(ctx context.Context, runner *Runner, name string) (Result, error) {
	job, ok := r.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("unknown job %q", name)
	}
	return runner.Run(ctx, job), nil
}

// Trigger is the SQS message asking the worker to run a job. Schedules
// that cannot generate ids may omit TriggerID; the worker then falls back to
// the SQS message id.
type Trigger struct {
	Job           string `json:"job"`
	TriggerID     string `json:"trigger_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewTrigger returns a Trigger for job with a fresh id.
func NewTrigger(job, correlationID string) Trigger {
	return Trigger{Job: job, TriggerID: uuid.NewString(), CorrelationID: correlationID}
}

// ParseTrigger decodes and checks a trigger message body.
func ParseTrigger(body string) (Trigger, error) {
	var t Trigger
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return Trigger{}, fmt.Errorf("invalid trigger body: %w", err)
	}
	if t.Job == "" {
		return Trigger{}, fmt.Errorf("trigger has no job")
	}
	return t, nil
}

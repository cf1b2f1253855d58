package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-crm-backend/internal/jobs"
	"github.com/imrishuroy/go-crm-backend/internal/runs"
)

// RunLedger de-duplicates trigger deliveries. *runs.Ledger implements it.
type RunLedger interface {
	Begin(ctx context.Context, triggerID, job string) (bool, error)
	MarkSucceeded(ctx context.Context, triggerID string) error
	MarkFailed(ctx context.Context, triggerID, note string) error
	Get(ctx context.Context, triggerID string) (*runs.RunRecord, error)
}

// Processor runs the jobs named by SQS trigger messages.
type Processor struct {
	registry jobs.Registry
	runner   *jobs.Runner
	ledger   RunLedger // nil disables de-duplication
}

// NewProcessor returns a Processor. ledger may be nil.
func NewProcessor(registry jobs.Registry, runner *jobs.Runner, ledger RunLedger) *Processor {
	return &Processor{registry: registry, runner: runner, ledger: ledger}
}

// Handle processes an SQS batch. Only ledger failures are reported back as
// batch item failures; a failed job is recorded and not retried, and a
// malformed or unknown trigger is dropped since redelivery cannot fix it.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log.Printf("[worker] received %d SQS messages", len(ev.Records))
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if retry := p.processMessage(ctx, rec); retry {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

// processMessage reports whether the message should be redelivered.
func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) bool {
	trigger, err := jobs.ParseTrigger(rec.Body)
	if err != nil {
		log.Printf("[worker] dropping message=%s: %v", rec.MessageId, err)
		return false
	}
	if trigger.TriggerID == "" {
		trigger.TriggerID = rec.MessageId
	}
	job, ok := p.registry.Get(trigger.Job)
	if !ok {
		log.Printf("[worker] dropping message=%s: unknown job %q", rec.MessageId, trigger.Job)
		return false
	}

	log.Printf("[worker] trigger=%s job=%s corr=%s", trigger.TriggerID, trigger.Job, trigger.CorrelationID)

	if p.ledger != nil {
		claimed, err := p.ledger.Begin(ctx, trigger.TriggerID, trigger.Job)
		if err != nil {
			log.Printf("[worker] ledger begin trigger=%s failed: %v", trigger.TriggerID, err)
			return true
		}
		if !claimed {
			p.logDuplicate(ctx, trigger)
			return false
		}
	}

	res := p.runner.Run(ctx, job)

	if p.ledger != nil {
		if res.Succeeded() {
			err = p.ledger.MarkSucceeded(ctx, trigger.TriggerID)
		} else {
			err = p.ledger.MarkFailed(ctx, trigger.TriggerID, errString(res.Err))
		}
		if err != nil {
			log.Printf("[worker] ledger update trigger=%s failed: %v", trigger.TriggerID, err)
		}
	}
	return false
}

// logDuplicate reports what the earlier delivery of trigger is doing.
func (p *Processor) logDuplicate(ctx context.Context, trigger jobs.Trigger) {
	rec, err := p.ledger.Get(ctx, trigger.TriggerID)
	switch {
	case err != nil:
		log.Printf("[worker] duplicate trigger=%s job=%s skipped (status unknown: %v)", trigger.TriggerID, trigger.Job, err)
	case rec == nil:
		log.Printf("[worker] duplicate trigger=%s job=%s skipped (record expired)", trigger.TriggerID, trigger.Job)
	default:
		log.Printf("[worker] duplicate trigger=%s job=%s skipped status=%s attempts=%d since=%s",
			trigger.TriggerID, trigger.Job, rec.Status, rec.Attempts, rec.CreatedAt.Format(time.RFC3339))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

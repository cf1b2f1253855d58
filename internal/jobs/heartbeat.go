package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

const heartbeatLayout = "02/01/2006-15:04:05"

// Heartbeat records that the CRM is alive and then pings the API. A failed
// ping is only logged; failing to write the heartbeat line fails the run.
type Heartbeat struct {
	API     API
	Sink    Sink
	nowFunc func() time.Time
}

func NewHeartbeat(api API, sink Sink) *Heartbeat {
	return &Heartbeat{API: api, Sink: sink, nowFunc: time.Now}
}

func (h *Heartbeat) Name() string { return NameHeartbeat }

func (h *Heartbeat) Run(ctx context.Context) error {
	line := fmt.Sprintf("%s CRM is alive", h.nowFunc().Format(heartbeatLayout))
	if err := h.Sink.Write(line); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}

	hello, err := h.API.Hello(ctx)
	if err != nil {
		log.Printf("[jobs] heartbeat: api ping failed: %v", err)
		return nil
	}
	log.Printf("[jobs] heartbeat: api responsive: %s", hello)
	return nil
}

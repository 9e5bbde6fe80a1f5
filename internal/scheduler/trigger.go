package scheduler

import (
	"context"
	"errors"
	"time"

	"dealroom_backend/platform/config"
	"dealroom_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SweepTrigger periodically enqueues a follow-up sweep task. The sweep itself
// runs on the worker; this type only produces the ticks.
type SweepTrigger struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

// NewSweepTrigger creates a new sweep trigger.
func NewSweepTrigger(client *Client, cfg config.SchedulerConfig, log *logger.Logger) *SweepTrigger {
	interval := cfg.GetSweepInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepTrigger{
		client:   client,
		interval: interval,
		log:      log,
	}
}

// Run enqueues one sweep immediately and then on every tick until the
// context is cancelled.
func (t *SweepTrigger) Run(ctx context.Context) {
	t.enqueue(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.enqueue(ctx)
		}
	}
}

func (t *SweepTrigger) enqueue(ctx context.Context) {
	err := t.client.EnqueueSweep(ctx, time.Now(), t.interval)
	if err == nil {
		return
	}
	// Uniqueness rejects a tick while the previous sweep is still pending.
	if errors.Is(err, asynq.ErrDuplicateTask) {
		t.log.Debug("followup sweep already enqueued")
		return
	}
	t.log.Error("failed to enqueue followup sweep", "error", err)
}

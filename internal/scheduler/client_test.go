package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type fakeSchedulerConfig struct {
	redisURL string
}

func (c fakeSchedulerConfig) GetRedisURL() string             { return c.redisURL }
func (c fakeSchedulerConfig) GetRedisTLSInsecure() bool       { return false }
func (c fakeSchedulerConfig) GetAsynqQueueName() string       { return "followups" }
func (c fakeSchedulerConfig) GetAsynqConcurrency() int        { return 1 }
func (c fakeSchedulerConfig) GetSweepInterval() time.Duration { return time.Minute }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(fakeSchedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}

func TestEnqueueSweepUniqueness(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(fakeSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	now := time.Now()

	if err := client.EnqueueSweep(ctx, now, time.Minute); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}

	// The sweep task is unique over the interval; the second enqueue is a
	// duplicate and must be rejected.
	err = client.EnqueueSweep(ctx, now, time.Minute)
	if !errors.Is(err, asynq.ErrDuplicateTask) {
		t.Errorf("second enqueue error = %v, want duplicate task", err)
	}
}

func TestFollowupSweepPayloadRoundTrip(t *testing.T) {
	triggeredAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	task, err := NewFollowupSweepTask(FollowupSweepPayload{TriggeredAt: triggeredAt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TaskFollowupSweep {
		t.Errorf("task type = %q, want %q", task.Type(), TaskFollowupSweep)
	}

	payload, err := ParseFollowupSweepPayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payload.TriggeredAt.Equal(triggeredAt) {
		t.Errorf("triggeredAt = %v, want %v", payload.TriggeredAt, triggeredAt)
	}
}

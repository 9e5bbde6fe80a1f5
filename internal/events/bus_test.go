package events

import (
	"context"
	"testing"

	"dealroom_backend/platform/logger"

	"github.com/google/uuid"
)

func TestNewInMemoryBusDeliversDomainEvents(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	var seen []FollowupCancelled
	bus.Subscribe(FollowupCancelled{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		seen = append(seen, event.(FollowupCancelled))
		return nil
	}))

	leadID := uuid.New()
	err := bus.PublishSync(context.Background(), FollowupCancelled{
		BaseEvent: NewBaseEvent(),
		LeadID:    leadID,
		Reason:    "deal_won",
		Count:     2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("delivered events = %d, want 1", len(seen))
	}
	if seen[0].LeadID != leadID || seen[0].Count != 2 {
		t.Errorf("event = %+v, want leadID %s with count 2", seen[0], leadID)
	}
}

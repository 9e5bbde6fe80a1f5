// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"dealroom_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Follow-up Domain Events
// =============================================================================

// FollowupScheduled is published when a follow-up timer is created or rescheduled.
type FollowupScheduled struct {
	BaseEvent
	TaskID       uuid.UUID `json:"taskId"`
	LeadID       uuid.UUID `json:"leadId"`
	DocumentID   uuid.UUID `json:"documentId"`
	ViewerEmail  string    `json:"viewerEmail"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Rescheduled  bool      `json:"rescheduled"`
}

func (e FollowupScheduled) EventName() string { return "followup.timer.scheduled" }

// FollowupCancelled is published when one or more scheduled timers are cancelled.
type FollowupCancelled struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
	Count  int       `json:"count"`
}

func (e FollowupCancelled) EventName() string { return "followup.timer.cancelled" }

// FollowupDispatched is published when a due follow-up email has been sent.
type FollowupDispatched struct {
	BaseEvent
	TaskID      uuid.UUID `json:"taskId"`
	LeadID      uuid.UUID `json:"leadId"`
	ViewerEmail string    `json:"viewerEmail"`
}

func (e FollowupDispatched) EventName() string { return "followup.timer.dispatched" }

// FollowupDispatchFailed is published when dispatch of a due follow-up failed.
type FollowupDispatchFailed struct {
	BaseEvent
	TaskID uuid.UUID `json:"taskId"`
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e FollowupDispatchFailed) EventName() string { return "followup.timer.dispatch_failed" }

// =============================================================================
// Booking Domain Events
// =============================================================================

// BookingEventApplied is published after a provider webhook has been
// reconciled into the booking ledger.
type BookingEventApplied struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	ExternalEventID string    `json:"externalEventId"`
	Status          string    `json:"status"`
	StatusChanged   bool      `json:"statusChanged"`
}

func (e BookingEventApplied) EventName() string { return "booking.event.applied" }

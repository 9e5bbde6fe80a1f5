package booking

import (
	"context"
	"time"

	"dealroom_backend/internal/events"
	leads "dealroom_backend/internal/leads/repository"
	"dealroom_backend/platform/apperr"
	"dealroom_backend/platform/config"
	"dealroom_backend/platform/logger"

	"github.com/google/uuid"
)

// Reason written on follow-up tasks cancelled because of a fresh booking.
const cancelReasonBookingConfirmed = "booking_confirmed"

// LeadReader is the interface for reading leads. Satisfied by the leads repository.
type LeadReader interface {
	GetByID(ctx context.Context, leadID uuid.UUID) (leads.Lead, error)
}

// LedgerStore persists booking ledger mutations. Satisfied by *Repository.
type LedgerStore interface {
	ApplyEvent(ctx context.Context, leadID uuid.UUID, event BookingEvent) (ApplyResult, error)
	LatestRecord(ctx context.Context, leadID uuid.UUID) (*BookingRecord, error)
}

// FollowupCanceller cancels a lead's scheduled follow-up timers.
// Satisfied by the followup service; injected via setter to break the
// booking/followup dependency cycle.
type FollowupCanceller interface {
	CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason string) (int, error)
}

// WebhookResult is returned to the provider on a successfully processed webhook.
type WebhookResult struct {
	LeadID          uuid.UUID `json:"lead_id"`
	ExternalEventID string    `json:"external_event_id"`
	Status          string    `json:"status"`
}

// BookingCheckResult reports whether a lead has a qualifying recent booking.
type BookingCheckResult struct {
	HasRecentBooking bool `json:"has_recent_booking"`
	CancelledCount   int  `json:"cancelled_count"`
}

// Service handles inbound booking-provider webhooks and the recent-booking check.
type Service struct {
	ledger    LedgerStore
	leads     LeadReader
	followups FollowupCanceller
	cfg       config.FollowupConfig
	eventBus  events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new booking service.
func NewService(ledger LedgerStore, leads LeadReader, cfg config.FollowupConfig, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		ledger:   ledger,
		leads:    leads,
		cfg:      cfg,
		eventBus: eventBus,
		log:      log,
		now:      time.Now,
	}
}

// SetFollowupCanceller wires the follow-up service after construction.
func (s *Service) SetFollowupCanceller(fc FollowupCanceller) {
	s.followups = fc
}

// ProcessWebhook validates an inbound provider payload, resolves the owning
// lead and reconciles the event into the lead's ledger. A confirmed event
// additionally runs the recent-booking check, which cancels the lead's
// scheduled follow-up timers as a side effect.
func (s *Service) ProcessWebhook(ctx context.Context, payload WebhookPayload) (WebhookResult, error) {
	// Shape validation happens before any lookup so invalid payloads have
	// no side effects.
	if payload.WebhookType != WebhookTypeConfirmed && payload.WebhookType != WebhookTypeCancelled {
		return WebhookResult{}, apperr.Validation("unsupported webhook_type")
	}
	if payload.Event.ID == "" {
		return WebhookResult{}, apperr.Validation("missing event id")
	}

	leadID, err := ResolveLeadID(payload)
	if err != nil {
		s.log.WebhookEvent(payload.WebhookType, payload.Event.ID, false, "unresolved lead id")
		return WebhookResult{}, err
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.WebhookEvent(payload.WebhookType, payload.Event.ID, false, "lead not found")
		}
		return WebhookResult{}, err
	}

	event := buildBookingEvent(payload, s.now())
	result, err := s.ledger.ApplyEvent(ctx, lead.ID, event)
	if err != nil {
		s.log.DatabaseError("booking.apply_event", err)
		return WebhookResult{}, err
	}

	s.eventBus.Publish(ctx, events.BookingEventApplied{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		ExternalEventID: event.ExternalEventID,
		Status:          string(event.Status),
		StatusChanged:   result.Created || result.StatusChanged,
	})

	if event.Status == StatusConfirmed {
		if _, err := s.CheckRecentBooking(ctx, lead.ID); err != nil {
			// The webhook itself succeeded; losing the cancellation side
			// effect is recoverable on the next sweep.
			s.log.Error("booking: recent-booking check failed", "error", err, "leadId", lead.ID)
		}
	}

	s.log.WebhookEvent(payload.WebhookType, payload.Event.ID, true, "")

	return WebhookResult{
		LeadID:          lead.ID,
		ExternalEventID: event.ExternalEventID,
		Status:          string(event.Status),
	}, nil
}

// CheckRecentBooking reports whether the lead's latest booking record is a
// confirmed booking created inside the configured freshness window. When it
// is, every scheduled follow-up timer for the lead is cancelled.
func (s *Service) CheckRecentBooking(ctx context.Context, leadID uuid.UUID) (BookingCheckResult, error) {
	latest, err := s.ledger.LatestRecord(ctx, leadID)
	if err != nil {
		return BookingCheckResult{}, err
	}
	if latest == nil || latest.Status != StatusConfirmed {
		return BookingCheckResult{}, nil
	}
	if s.now().Sub(latest.CreatedAt) > s.cfg.GetRecentBookingWindow() {
		return BookingCheckResult{}, nil
	}

	cancelled := 0
	if s.followups != nil {
		cancelled, err = s.followups.CancelAllForLead(ctx, leadID, cancelReasonBookingConfirmed)
		if err != nil {
			return BookingCheckResult{}, err
		}
	}

	return BookingCheckResult{HasRecentBooking: true, CancelledCount: cancelled}, nil
}

// buildBookingEvent maps a validated provider payload onto the normalized
// ledger input, pulling guest fields out of the form answers. A cancellation
// without a cancelled_at timestamp defaults to the processing time.
func buildBookingEvent(payload WebhookPayload, now time.Time) BookingEvent {
	status := StatusConfirmed
	if payload.WebhookType == WebhookTypeCancelled {
		status = StatusCancelled
	}

	event := BookingEvent{
		ExternalEventID:  payload.Event.ID,
		Status:           status,
		ScheduledStart:   payload.Event.StartTime,
		ScheduledEnd:     payload.Event.EndTime,
		GuestName:        payload.Event.formValue(FieldTypeGuestName),
		GuestEmail:       payload.Event.formValue(FieldTypeGuestEmail),
		GuestCompanyName: payload.Event.formValue(FieldTypeCompanyName),
		GuestComment:     payload.Event.formValue(FieldTypeGuestComment),
		DocumentID:       ResolveDocumentID(payload),
	}

	if status == StatusCancelled {
		event.CancelledAt = payload.Event.CancelledAt
		if event.CancelledAt == nil {
			event.CancelledAt = &now
		}
		event.CancellationReason = payload.Event.CancellationReason
	}

	return event
}

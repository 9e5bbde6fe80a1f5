package followup

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

// Timer upsert outcomes.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// TaskStore persists follow-up tasks. Satisfied by *Repository.
type TaskStore interface {
	UpsertScheduled(ctx context.Context, leadID, documentID uuid.UUID, viewerIdentity string, triggeredAt, scheduledFor time.Time) (Task, bool, error)
	CancelScheduledByKey(ctx context.Context, leadID, documentID uuid.UUID, viewerIdentity, reason string) (int, error)
	CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason string) (int, error)
}

// LeadStore reads leads and their documents. Satisfied by the leads repository.
type LeadStore interface {
	GetByID(ctx context.Context, leadID uuid.UUID) (leads.Lead, error)
	GetDocument(ctx context.Context, leadID, documentID uuid.UUID) (leads.Document, error)
}

// StartResult is returned on a successful startTimer call.
type StartResult struct {
	TaskID       uuid.UUID
	ScheduledFor time.Time
	DelayMinutes int
	Action       string
}

// Service is the timer controller. It exposes the start/stop operations
// invoked by viewer-facing signals.
type Service struct {
	tasks    TaskStore
	leads    LeadStore
	cfg      config.FollowupConfig
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new follow-up service.
func NewService(tasks TaskStore, leads LeadStore, cfg config.FollowupConfig, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		tasks:    tasks,
		leads:    leads,
		cfg:      cfg,
		eventBus: eventBus,
		log:      log,
		now:      time.Now,
	}
}

// StartTimer schedules (or re-triggers) the follow-up timer for a
// (lead, document, viewer) key. Preconditions are checked in order and the
// first failure short-circuits without any mutation.
func (s *Service) StartTimer(ctx context.Context, leadID, documentID uuid.UUID, viewerIdentity string) (StartResult, error) {
	if !s.cfg.IsFollowupEnabled() {
		return StartResult{}, apperr.Precondition("feature_disabled", "follow-up emails are disabled")
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return StartResult{}, err
	}
	if !lead.HasContactEmail() {
		return StartResult{}, apperr.Precondition("no_contact_email", "lead has no contact email")
	}
	if lead.DealStatus == leads.DealStatusWon {
		return StartResult{}, apperr.Precondition("deal_already_won", "deal is already won")
	}

	if _, err := s.leads.GetDocument(ctx, leadID, documentID); err != nil {
		return StartResult{}, err
	}

	now := s.now()
	delay := s.cfg.GetFollowupDelay()
	scheduledFor := now.Add(delay)

	task, created, err := s.tasks.UpsertScheduled(ctx, leadID, documentID, viewerIdentity, now, scheduledFor)
	if err != nil {
		s.log.DatabaseError("followup.upsert_scheduled", err)
		return StartResult{}, err
	}

	action := ActionUpdated
	if created {
		action = ActionCreated
	}

	s.eventBus.Publish(ctx, events.FollowupScheduled{
		BaseEvent:    events.NewBaseEvent(),
		TaskID:       task.ID,
		LeadID:       leadID,
		DocumentID:   documentID,
		ViewerEmail:  viewerIdentity,
		ScheduledFor: task.ScheduledFor,
		Rescheduled:  !created,
	})

	return StartResult{
		TaskID:       task.ID,
		ScheduledFor: task.ScheduledFor,
		DelayMinutes: int(delay.Minutes()),
		Action:       action,
	}, nil
}

// StopTimer cancels the scheduled timer for a (lead, document, viewer) key.
// A key with no scheduled task is not an error; the count is zero.
func (s *Service) StopTimer(ctx context.Context, leadID, documentID uuid.UUID, viewerIdentity, reason string) (int, error) {
	cancelled, err := s.tasks.CancelScheduledByKey(ctx, leadID, documentID, viewerIdentity, reason)
	if err != nil {
		s.log.DatabaseError("followup.cancel_by_key", err)
		return 0, err
	}

	if cancelled > 0 {
		s.eventBus.Publish(ctx, events.FollowupCancelled{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			Reason:    reason,
			Count:     cancelled,
		})
	}

	return cancelled, nil
}

// CancelAllForLead cancels every scheduled timer for a lead. Used by the
// booking module when a qualifying confirmed booking arrives.
func (s *Service) CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason string) (int, error) {
	cancelled, err := s.tasks.CancelAllForLead(ctx, leadID, reason)
	if err != nil {
		s.log.DatabaseError("followup.cancel_for_lead", err)
		return 0, err
	}

	if cancelled > 0 {
		s.eventBus.Publish(ctx, events.FollowupCancelled{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			Reason:    reason,
			Count:     cancelled,
		})
	}

	return cancelled, nil
}

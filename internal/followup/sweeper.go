package followup

import (
	"context"
	"strings"
	"time"

	"dealroom_backend/internal/booking"
	"dealroom_backend/internal/email"
	"dealroom_backend/internal/events"
	leads "dealroom_backend/internal/leads/repository"
	"dealroom_backend/platform/config"
	"dealroom_backend/platform/logger"

	"github.com/google/uuid"
)

// Reason written on tasks cancelled because the deal was won meanwhile.
const cancelReasonDealWon = "deal_won"

// SweepStore is the task access the sweeper needs. Satisfied by *Repository.
type SweepStore interface {
	ListDue(ctx context.Context, now time.Time) ([]DueTask, error)
	CancelTask(ctx context.Context, taskID uuid.UUID, reason string) error
	MarkSent(ctx context.Context, taskID uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, taskID uuid.UUID, message string) error
}

// BookingChecker runs the recent-booking check, cancelling the lead's
// scheduled timers as a side effect. Satisfied by the booking service.
type BookingChecker interface {
	CheckRecentBooking(ctx context.Context, leadID uuid.UUID) (booking.BookingCheckResult, error)
}

// SweepConfig is the configuration the sweeper reads: timer settings plus
// the app base URL used to build the document link in outgoing mail.
type SweepConfig interface {
	config.FollowupConfig
	config.NotificationConfig
}

// SweepStats is the aggregate outcome of one sweep run.
type SweepStats struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Sweeper processes due follow-up timers. Cancellation precedence per task:
// a won deal beats a recent confirmed booking beats dispatch.
type Sweeper struct {
	tasks    SweepStore
	bookings BookingChecker
	mailer   email.Sender
	cfg      SweepConfig
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// NewSweeper creates a new dispatch sweeper. The booking checker is wired
// afterwards via SetBookingChecker.
func NewSweeper(tasks SweepStore, mailer email.Sender, cfg SweepConfig, eventBus events.Bus, log *logger.Logger) *Sweeper {
	return &Sweeper{
		tasks:    tasks,
		mailer:   mailer,
		cfg:      cfg,
		eventBus: eventBus,
		log:      log,
		now:      time.Now,
	}
}

// SetBookingChecker wires the booking service after construction.
func (s *Sweeper) SetBookingChecker(bc BookingChecker) {
	s.bookings = bc
}

// RunSweep fetches all due scheduled tasks and processes each independently.
// A single task's failure never aborts the remaining tasks; the error return
// covers only the initial fetch.
func (s *Sweeper) RunSweep(ctx context.Context) (SweepStats, error) {
	due, err := s.tasks.ListDue(ctx, s.now())
	if err != nil {
		s.log.DatabaseError("followup.list_due", err)
		return SweepStats{}, err
	}

	var stats SweepStats
	for _, task := range due {
		stats.Processed++
		s.processTask(ctx, task, &stats)
	}

	s.log.SweepResult(stats.Processed, stats.Sent, stats.Failed, stats.Skipped)
	return stats, nil
}

func (s *Sweeper) processTask(ctx context.Context, task DueTask, stats *SweepStats) {
	if task.LeadDealStatus == leads.DealStatusWon {
		if err := s.tasks.CancelTask(ctx, task.ID, cancelReasonDealWon); err != nil {
			s.log.DatabaseError("followup.cancel_task", err)
		}
		stats.Skipped++
		return
	}

	if s.bookings != nil {
		check, err := s.bookings.CheckRecentBooking(ctx, task.LeadID)
		if err != nil {
			s.log.Error("followup: recent-booking check failed", "error", err, "leadId", task.LeadID)
		} else if check.HasRecentBooking {
			// The check cancelled the lead's scheduled tasks, this one included.
			stats.Skipped++
			return
		}
	}

	if err := s.dispatch(ctx, task); err != nil {
		if dbErr := s.tasks.MarkFailed(ctx, task.ID, err.Error()); dbErr != nil {
			s.log.DatabaseError("followup.mark_failed", dbErr)
		}
		s.eventBus.Publish(ctx, events.FollowupDispatchFailed{
			BaseEvent: events.NewBaseEvent(),
			TaskID:    task.ID,
			LeadID:    task.LeadID,
			Reason:    err.Error(),
		})
		stats.Failed++
		return
	}

	if err := s.tasks.MarkSent(ctx, task.ID, s.now()); err != nil {
		s.log.DatabaseError("followup.mark_sent", err)
	}
	s.eventBus.Publish(ctx, events.FollowupDispatched{
		BaseEvent:   events.NewBaseEvent(),
		TaskID:      task.ID,
		LeadID:      task.LeadID,
		ViewerEmail: derefString(task.LeadContactEmail),
	})
	stats.Sent++
}

func (s *Sweeper) dispatch(ctx context.Context, task DueTask) error {
	if task.LeadContactEmail == nil || *task.LeadContactEmail == "" {
		return email.ErrNoRecipient
	}

	msg := email.FollowupMessage{
		To:            *task.LeadContactEmail,
		LeadName:      task.LeadName,
		DocumentTitle: task.DocumentTitle,
		DocumentURL:   s.documentURL(task.DocumentID),
		Subject:       email.FormatSubject(s.cfg.GetFollowupSubjectTemplate(), task.DocumentTitle),
	}
	return s.mailer.SendFollowupEmail(ctx, msg)
}

// documentURL builds the viewer link for the email CTA. Empty when no app
// base URL is configured; the template then omits the button.
func (s *Sweeper) documentURL(documentID uuid.UUID) string {
	base := strings.TrimRight(s.cfg.GetAppBaseURL(), "/")
	if base == "" {
		return ""
	}
	return base + "/documents/" + documentID.String()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

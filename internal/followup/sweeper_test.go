package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"dealroom_backend/internal/booking"
	"dealroom_backend/internal/email"
	leads "dealroom_backend/internal/leads/repository"
	"dealroom_backend/platform/events"
	"dealroom_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeSweepStore struct {
	due       []DueTask
	cancelled map[uuid.UUID]string
	sent      map[uuid.UUID]time.Time
	failed    map[uuid.UUID]string
}

func newFakeSweepStore(due ...DueTask) *fakeSweepStore {
	return &fakeSweepStore{
		due:       due,
		cancelled: make(map[uuid.UUID]string),
		sent:      make(map[uuid.UUID]time.Time),
		failed:    make(map[uuid.UUID]string),
	}
}

func (f *fakeSweepStore) ListDue(ctx context.Context, now time.Time) ([]DueTask, error) {
	return f.due, nil
}

func (f *fakeSweepStore) CancelTask(ctx context.Context, taskID uuid.UUID, reason string) error {
	f.cancelled[taskID] = reason
	return nil
}

func (f *fakeSweepStore) MarkSent(ctx context.Context, taskID uuid.UUID, sentAt time.Time) error {
	f.sent[taskID] = sentAt
	return nil
}

func (f *fakeSweepStore) MarkFailed(ctx context.Context, taskID uuid.UUID, message string) error {
	f.failed[taskID] = message
	return nil
}

type fakeBookingChecker struct {
	recent map[uuid.UUID]int
	calls  []uuid.UUID
}

func (f *fakeBookingChecker) CheckRecentBooking(ctx context.Context, leadID uuid.UUID) (booking.BookingCheckResult, error) {
	f.calls = append(f.calls, leadID)
	if count, ok := f.recent[leadID]; ok {
		return booking.BookingCheckResult{HasRecentBooking: true, CancelledCount: count}, nil
	}
	return booking.BookingCheckResult{}, nil
}

type fakeMailer struct {
	sent    []email.FollowupMessage
	failFor map[string]error
}

func (f *fakeMailer) SendFollowupEmail(ctx context.Context, msg email.FollowupMessage) error {
	if err, ok := f.failFor[msg.To]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func dueTask(dealStatus string, contactEmail *string) DueTask {
	return DueTask{
		Task: Task{
			ID:             uuid.New(),
			LeadID:         uuid.New(),
			DocumentID:     uuid.New(),
			ViewerIdentity: "1.2.3.4",
			TriggeredAt:    time.Now().Add(-20 * time.Minute),
			ScheduledFor:   time.Now().Add(-5 * time.Minute),
			Status:         StatusScheduled,
		},
		LeadName:         "Acme",
		LeadContactEmail: contactEmail,
		LeadDealStatus:   dealStatus,
		DocumentTitle:    "Proposal",
	}
}

func newTestSweeper(store SweepStore, mailer email.Sender, checker BookingChecker) *Sweeper {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	cfg := fakeFollowupConfig{enabled: true, delay: 15 * time.Minute, subject: "Any questions about %s?", window: 30 * time.Minute, baseURL: "https://app.example.com/"}
	s := NewSweeper(store, mailer, cfg, bus, log)
	s.SetBookingChecker(checker)
	return s
}

func TestRunSweepDispatchesDueTask(t *testing.T) {
	task := dueTask(leads.DealStatusProspecting, strptr("buyer@acme.test"))
	store := newFakeSweepStore(task)
	mailer := &fakeMailer{}
	sweeper := newTestSweeper(store, mailer, &fakeBookingChecker{})

	stats, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (SweepStats{Processed: 1, Sent: 1}) {
		t.Errorf("stats = %+v, want 1 processed, 1 sent", stats)
	}
	if _, ok := store.sent[task.ID]; !ok {
		t.Error("task must be marked sent")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent emails = %d, want 1", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "buyer@acme.test" {
		t.Errorf("to = %q", msg.To)
	}
	if msg.Subject != "Any questions about Proposal?" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if want := "https://app.example.com/documents/" + task.DocumentID.String(); msg.DocumentURL != want {
		t.Errorf("documentURL = %q, want %q", msg.DocumentURL, want)
	}
}

func TestRunSweepDealWonPrecedence(t *testing.T) {
	task := dueTask(leads.DealStatusWon, strptr("buyer@acme.test"))
	store := newFakeSweepStore(task)
	mailer := &fakeMailer{}
	checker := &fakeBookingChecker{recent: map[uuid.UUID]int{task.LeadID: 1}}
	sweeper := newTestSweeper(store, mailer, checker)

	stats, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (SweepStats{Processed: 1, Skipped: 1}) {
		t.Errorf("stats = %+v, want 1 processed, 1 skipped", stats)
	}
	if reason := store.cancelled[task.ID]; reason != "deal_won" {
		t.Errorf("cancel reason = %q, want deal_won", reason)
	}
	// A won deal settles the task before the booking check runs.
	if len(checker.calls) != 0 {
		t.Error("deal won must take precedence over the booking check")
	}
	if len(mailer.sent) != 0 {
		t.Error("deal won must not dispatch email")
	}
}

func TestRunSweepRecentBookingSkips(t *testing.T) {
	task := dueTask(leads.DealStatusProspecting, strptr("buyer@acme.test"))
	store := newFakeSweepStore(task)
	mailer := &fakeMailer{}
	checker := &fakeBookingChecker{recent: map[uuid.UUID]int{task.LeadID: 1}}
	sweeper := newTestSweeper(store, mailer, checker)

	stats, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (SweepStats{Processed: 1, Skipped: 1}) {
		t.Errorf("stats = %+v, want 1 processed, 1 skipped", stats)
	}
	if len(mailer.sent) != 0 {
		t.Error("recent booking must suppress dispatch")
	}
}

func TestRunSweepFailureIsolation(t *testing.T) {
	failing := dueTask(leads.DealStatusProspecting, strptr("down@acme.test"))
	healthy := dueTask(leads.DealStatusProspecting, strptr("up@acme.test"))
	store := newFakeSweepStore(failing, healthy)
	mailer := &fakeMailer{failFor: map[string]error{"down@acme.test": errors.New("smtp timeout")}}
	sweeper := newTestSweeper(store, mailer, &fakeBookingChecker{})

	stats, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (SweepStats{Processed: 2, Sent: 1, Failed: 1}) {
		t.Errorf("stats = %+v, want 2 processed, 1 sent, 1 failed", stats)
	}
	if msg := store.failed[failing.ID]; msg != "smtp timeout" {
		t.Errorf("failure message = %q, want smtp timeout", msg)
	}
	if _, ok := store.sent[healthy.ID]; !ok {
		t.Error("one failed dispatch must not abort the remaining tasks")
	}
}

func TestRunSweepMissingContactEmailFails(t *testing.T) {
	task := dueTask(leads.DealStatusProspecting, nil)
	store := newFakeSweepStore(task)
	mailer := &fakeMailer{}
	sweeper := newTestSweeper(store, mailer, &fakeBookingChecker{})

	stats, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (SweepStats{Processed: 1, Failed: 1}) {
		t.Errorf("stats = %+v, want 1 processed, 1 failed", stats)
	}
	if msg := store.failed[task.ID]; msg != email.ErrNoRecipient.Error() {
		t.Errorf("failure message = %q", msg)
	}
}

func TestRunSweepEmpty(t *testing.T) {
	sweeper := newTestSweeper(newFakeSweepStore(), &fakeMailer{}, &fakeBookingChecker{})

	stats, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (SweepStats{}) {
		t.Errorf("stats = %+v, want zero stats", stats)
	}
}

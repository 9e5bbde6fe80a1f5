package booking

import (
	"context"
	"testing"
	"time"

	leads "dealroom_backend/internal/leads/repository"
	"dealroom_backend/platform/apperr"
	"dealroom_backend/platform/events"
	"dealroom_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadReader struct {
	leads map[uuid.UUID]leads.Lead
	calls int
}

func (f *fakeLeadReader) GetByID(ctx context.Context, leadID uuid.UUID) (leads.Lead, error) {
	f.calls++
	lead, ok := f.leads[leadID]
	if !ok {
		return leads.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

// memLedgerStore reuses the in-memory Ledger per lead, standing in for the
// SQL repository.
type memLedgerStore struct {
	ledgers map[uuid.UUID]*Ledger
	now     func() time.Time
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{ledgers: make(map[uuid.UUID]*Ledger), now: time.Now}
}

func (m *memLedgerStore) ledger(leadID uuid.UUID) *Ledger {
	l, ok := m.ledgers[leadID]
	if !ok {
		l = &Ledger{}
		m.ledgers[leadID] = l
	}
	return l
}

func (m *memLedgerStore) ApplyEvent(ctx context.Context, leadID uuid.UUID, event BookingEvent) (ApplyResult, error) {
	return m.ledger(leadID).Apply(event, m.now()), nil
}

func (m *memLedgerStore) LatestRecord(ctx context.Context, leadID uuid.UUID) (*BookingRecord, error) {
	l := m.ledger(leadID)
	var latest *BookingRecord
	for i := range l.Records {
		if latest == nil || !l.Records[i].CreatedAt.Before(latest.CreatedAt) {
			latest = &l.Records[i]
		}
	}
	return latest, nil
}

type fakeCanceller struct {
	leadIDs []uuid.UUID
	reasons []string
	count   int
}

func (f *fakeCanceller) CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason string) (int, error) {
	f.leadIDs = append(f.leadIDs, leadID)
	f.reasons = append(f.reasons, reason)
	return f.count, nil
}

type fakeFollowupConfig struct {
	enabled bool
	delay   time.Duration
	subject string
	window  time.Duration
}

func (c fakeFollowupConfig) IsFollowupEnabled() bool               { return c.enabled }
func (c fakeFollowupConfig) GetFollowupDelay() time.Duration       { return c.delay }
func (c fakeFollowupConfig) GetFollowupSubjectTemplate() string    { return c.subject }
func (c fakeFollowupConfig) GetRecentBookingWindow() time.Duration { return c.window }

func newTestService(store LedgerStore, reader *fakeLeadReader) *Service {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	cfg := fakeFollowupConfig{enabled: true, delay: 15 * time.Minute, window: 30 * time.Minute}
	return NewService(store, reader, cfg, bus, log)
}

func confirmedPayload(leadID uuid.UUID, eventID string) WebhookPayload {
	return WebhookPayload{
		WebhookType: WebhookTypeConfirmed,
		CalendarURL: "https://cal.example.com/intro?company_id=" + leadID.String(),
		Event: EventPayload{
			ID: eventID,
			Form: []FormField{
				{FieldType: FieldTypeGuestName, Value: "Ada"},
				{FieldType: FieldTypeGuestEmail, Value: "ada@example.com"},
			},
		},
	}
}

func TestProcessWebhookRejectsInvalidShapeBeforeLookup(t *testing.T) {
	reader := &fakeLeadReader{leads: map[uuid.UUID]leads.Lead{}}
	store := newMemLedgerStore()
	svc := newTestService(store, reader)

	cases := []WebhookPayload{
		{WebhookType: "event_rescheduled", Event: EventPayload{ID: "e1"}},
		{WebhookType: WebhookTypeConfirmed, Event: EventPayload{ID: ""}},
	}

	for _, payload := range cases {
		_, err := svc.ProcessWebhook(context.Background(), payload)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("error = %v, want validation", err)
		}
	}

	if reader.calls != 0 {
		t.Errorf("lead lookups = %d, want 0 for invalid payloads", reader.calls)
	}
	if len(store.ledgers) != 0 {
		t.Error("invalid payloads must not touch the ledger")
	}
}

func TestProcessWebhookUnknownLead(t *testing.T) {
	reader := &fakeLeadReader{leads: map[uuid.UUID]leads.Lead{}}
	store := newMemLedgerStore()
	svc := newTestService(store, reader)

	_, err := svc.ProcessWebhook(context.Background(), confirmedPayload(uuid.New(), "e1"))
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
	if len(store.ledgers) != 0 {
		t.Error("failed resolution must not touch the ledger")
	}
}

func TestProcessWebhookTwiceIsIdempotent(t *testing.T) {
	leadID := uuid.New()
	reader := &fakeLeadReader{leads: map[uuid.UUID]leads.Lead{
		leadID: {ID: leadID, Name: "Acme", DealStatus: leads.DealStatusProspecting},
	}}
	store := newMemLedgerStore()
	svc := newTestService(store, reader)
	svc.SetFollowupCanceller(&fakeCanceller{})

	payload := confirmedPayload(leadID, "e1")
	for i := 0; i < 2; i++ {
		result, err := svc.ProcessWebhook(context.Background(), payload)
		if err != nil {
			t.Fatalf("unexpected error on delivery %d: %v", i+1, err)
		}
		if result.LeadID != leadID || result.ExternalEventID != "e1" || result.Status != string(StatusConfirmed) {
			t.Errorf("result = %+v", result)
		}
	}

	l := store.ledger(leadID)
	if len(l.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(l.Records))
	}
	if l.ConfirmedCount != 1 || l.CancelledCount != 0 {
		t.Errorf("counters = (%d, %d), want (1, 0)", l.ConfirmedCount, l.CancelledCount)
	}
}

func TestBuildBookingEventCancelledAtDefault(t *testing.T) {
	now := time.Now()
	payload := confirmedPayload(uuid.New(), "e1")
	payload.WebhookType = WebhookTypeCancelled

	// A cancellation without a timestamp defaults to the processing time.
	event := buildBookingEvent(payload, now)
	if event.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled", event.Status)
	}
	if event.CancelledAt == nil || !event.CancelledAt.Equal(now) {
		t.Errorf("cancelledAt = %v, want default %v", event.CancelledAt, now)
	}

	explicit := now.Add(-time.Hour)
	payload.Event.CancelledAt = &explicit
	event = buildBookingEvent(payload, now)
	if event.CancelledAt == nil || !event.CancelledAt.Equal(explicit) {
		t.Errorf("cancelledAt = %v, want provided %v", event.CancelledAt, explicit)
	}

	event = buildBookingEvent(confirmedPayload(uuid.New(), "e2"), now)
	if event.CancelledAt != nil {
		t.Errorf("confirmed event cancelledAt = %v, want nil", event.CancelledAt)
	}
}

func TestProcessWebhookConfirmedCancelsScheduledTimers(t *testing.T) {
	leadID := uuid.New()
	reader := &fakeLeadReader{leads: map[uuid.UUID]leads.Lead{
		leadID: {ID: leadID, Name: "Acme", DealStatus: leads.DealStatusProspecting},
	}}
	store := newMemLedgerStore()
	svc := newTestService(store, reader)
	canceller := &fakeCanceller{count: 2}
	svc.SetFollowupCanceller(canceller)

	if _, err := svc.ProcessWebhook(context.Background(), confirmedPayload(leadID, "e1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(canceller.leadIDs) != 1 || canceller.leadIDs[0] != leadID {
		t.Fatalf("cancellations = %v, want one for %s", canceller.leadIDs, leadID)
	}
	if canceller.reasons[0] != "booking_confirmed" {
		t.Errorf("reason = %q, want booking_confirmed", canceller.reasons[0])
	}
}

func TestCheckRecentBookingWindow(t *testing.T) {
	leadID := uuid.New()
	reader := &fakeLeadReader{leads: map[uuid.UUID]leads.Lead{}}
	now := time.Now()

	cases := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"inside window", 10 * time.Minute, true},
		{"outside window", 40 * time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemLedgerStore()
			store.now = func() time.Time { return now.Add(-tc.age) }
			store.ApplyEvent(context.Background(), leadID, BookingEvent{ExternalEventID: "e1", Status: StatusConfirmed})

			svc := newTestService(store, reader)
			svc.now = func() time.Time { return now }
			canceller := &fakeCanceller{count: 1}
			svc.SetFollowupCanceller(canceller)

			check, err := svc.CheckRecentBooking(context.Background(), leadID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if check.HasRecentBooking != tc.want {
				t.Errorf("hasRecentBooking = %v, want %v", check.HasRecentBooking, tc.want)
			}
			if tc.want && check.CancelledCount != 1 {
				t.Errorf("cancelledCount = %d, want 1", check.CancelledCount)
			}
			if !tc.want && len(canceller.leadIDs) != 0 {
				t.Error("stale booking must not cancel timers")
			}
		})
	}
}

func TestCheckRecentBookingEmptyLedger(t *testing.T) {
	svc := newTestService(newMemLedgerStore(), &fakeLeadReader{})

	check, err := svc.CheckRecentBooking(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.HasRecentBooking || check.CancelledCount != 0 {
		t.Errorf("check = %+v, want empty result", check)
	}
}

func TestCheckRecentBookingCancelledLatest(t *testing.T) {
	leadID := uuid.New()
	store := newMemLedgerStore()
	base := time.Now().Add(-5 * time.Minute)
	store.now = func() time.Time { return base }
	store.ApplyEvent(context.Background(), leadID, BookingEvent{ExternalEventID: "e1", Status: StatusConfirmed})
	store.now = func() time.Time { return base.Add(time.Minute) }
	store.ApplyEvent(context.Background(), leadID, BookingEvent{ExternalEventID: "e2", Status: StatusCancelled})

	svc := newTestService(store, &fakeLeadReader{})

	check, err := svc.CheckRecentBooking(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.HasRecentBooking {
		t.Error("latest record is cancelled, must not count as recent booking")
	}
}

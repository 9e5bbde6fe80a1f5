// Package booking provides the booking reconciliation bounded context.
// It ingests provider webhooks and maintains a per-lead booking ledger
// with confirmed/cancelled aggregate counters.
package booking

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the reconciled status of a booking record.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// BookingRecord is one provider event reconciled into a lead's ledger.
// Records are created on first sighting of an external event id and
// mutated in place on every subsequent sighting, never deleted.
type BookingRecord struct {
	ID                 uuid.UUID
	LeadID             uuid.UUID
	ExternalEventID    string
	Status             BookingStatus
	ScheduledStart     *time.Time
	ScheduledEnd       *time.Time
	GuestName          string
	GuestEmail         string
	GuestCompanyName   string
	GuestComment       string
	DocumentID         *uuid.UUID
	CancelledAt        *time.Time
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BookingEvent is the normalized input applied against a ledger.
// Built by the webhook service from a validated provider payload.
type BookingEvent struct {
	ExternalEventID    string
	Status             BookingStatus
	ScheduledStart     *time.Time
	ScheduledEnd       *time.Time
	GuestName          string
	GuestEmail         string
	GuestCompanyName   string
	GuestComment       string
	DocumentID         *uuid.UUID
	CancelledAt        *time.Time
	CancellationReason *string
}

// ApplyResult describes the outcome of reconciling one event.
type ApplyResult struct {
	Created        bool
	StatusChanged  bool
	PreviousStatus BookingStatus
}

// transitionDeltas returns the counter adjustments for a status transition.
// Equal statuses produce no adjustment, which makes re-delivery of the same
// (id, status) pair a no-op on the counters.
func transitionDeltas(old, new BookingStatus) (confirmed, cancelled int) {
	if old == new {
		return 0, 0
	}
	if new == StatusConfirmed {
		return 1, -1
	}
	return -1, 1
}

// insertDeltas returns the counter adjustments for a first sighting.
func insertDeltas(status BookingStatus) (confirmed, cancelled int) {
	if status == StatusConfirmed {
		return 1, 0
	}
	return 0, 1
}

// Ledger is an in-memory booking ledger for a single lead. The persistent
// repository applies the same reconciliation inside a transaction; this type
// exists so the algorithm can be exercised without a database.
type Ledger struct {
	ConfirmedCount int
	CancelledCount int
	Records        []BookingRecord
}

// Apply reconciles an event into the ledger. The operation is idempotent
// under re-delivery: the result depends only on the incoming status versus
// the last stored status for the same external event id.
func (l *Ledger) Apply(event BookingEvent, now time.Time) ApplyResult {
	for i := range l.Records {
		if l.Records[i].ExternalEventID != event.ExternalEventID {
			continue
		}

		prev := l.Records[i].Status
		dc, dx := transitionDeltas(prev, event.Status)
		l.ConfirmedCount += dc
		l.CancelledCount += dx
		overwriteRecord(&l.Records[i], event, now)

		return ApplyResult{
			Created:        false,
			StatusChanged:  prev != event.Status,
			PreviousStatus: prev,
		}
	}

	record := BookingRecord{
		ID:              uuid.New(),
		ExternalEventID: event.ExternalEventID,
		CreatedAt:       now,
	}
	overwriteRecord(&record, event, now)
	l.Records = append(l.Records, record)

	dc, dx := insertDeltas(event.Status)
	l.ConfirmedCount += dc
	l.CancelledCount += dx

	return ApplyResult{Created: true}
}

// overwriteRecord copies the event's mutable fields onto the record.
// Cancellation fields are cleared when the incoming status is confirmed.
func overwriteRecord(r *BookingRecord, event BookingEvent, now time.Time) {
	r.Status = event.Status
	r.ScheduledStart = event.ScheduledStart
	r.ScheduledEnd = event.ScheduledEnd
	r.GuestName = event.GuestName
	r.GuestEmail = event.GuestEmail
	r.GuestCompanyName = event.GuestCompanyName
	r.GuestComment = event.GuestComment
	r.DocumentID = event.DocumentID
	r.UpdatedAt = now

	if event.Status == StatusCancelled {
		r.CancelledAt = event.CancelledAt
		if r.CancelledAt == nil {
			ts := now
			r.CancelledAt = &ts
		}
		r.CancellationReason = event.CancellationReason
	} else {
		r.CancelledAt = nil
		r.CancellationReason = nil
	}
}

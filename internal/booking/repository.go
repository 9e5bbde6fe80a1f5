package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists booking records and the per-lead counters.
// All mutations for one lead are serialized with a per-lead advisory lock
// so the counter invariant survives concurrent webhook deliveries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new booking repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ApplyEvent reconciles one provider event into the lead's ledger atomically.
// First sighting inserts a record and bumps the matching counter; a repeat
// sighting overwrites the record's mutable fields and adjusts both counters
// only when the status actually flipped.
func (r *Repository) ApplyEvent(ctx context.Context, leadID uuid.UUID, event BookingEvent) (ApplyResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ApplyResult{}, err
	}
	defer tx.Rollback(ctx)

	// Serialize all ledger mutations for this lead. The lock is released
	// automatically at transaction end.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, leadID); err != nil {
		return ApplyResult{}, err
	}

	var result ApplyResult
	var prev BookingStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM booking_records
		WHERE lead_id = $1 AND external_event_id = $2
	`, leadID, event.ExternalEventID).Scan(&prev)

	var confirmedDelta, cancelledDelta int
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_records (
				id, lead_id, external_event_id, status,
				scheduled_start, scheduled_end,
				guest_name, guest_email, guest_company_name, guest_comment,
				document_id, cancelled_at, cancellation_reason
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				CASE WHEN $4 = 'cancelled' THEN COALESCE($12::timestamptz, now()) ELSE NULL END,
				$13)
		`, uuid.New(), leadID, event.ExternalEventID, event.Status,
			event.ScheduledStart, event.ScheduledEnd,
			event.GuestName, event.GuestEmail, event.GuestCompanyName, event.GuestComment,
			event.DocumentID, event.CancelledAt, event.CancellationReason,
		); err != nil {
			return ApplyResult{}, err
		}
		confirmedDelta, cancelledDelta = insertDeltas(event.Status)
		result = ApplyResult{Created: true}

	case err != nil:
		return ApplyResult{}, err

	default:
		var cancelledAt interface{} = event.CancelledAt
		var cancellationReason interface{} = event.CancellationReason
		if event.Status == StatusConfirmed {
			cancelledAt = nil
			cancellationReason = nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE booking_records
			SET status = $3,
			    scheduled_start = $4, scheduled_end = $5,
			    guest_name = $6, guest_email = $7, guest_company_name = $8, guest_comment = $9,
			    document_id = $10,
			    cancelled_at = CASE WHEN $3 = 'cancelled' THEN COALESCE($11::timestamptz, now()) ELSE NULL END,
			    cancellation_reason = $12,
			    updated_at = now()
			WHERE lead_id = $1 AND external_event_id = $2
		`, leadID, event.ExternalEventID, event.Status,
			event.ScheduledStart, event.ScheduledEnd,
			event.GuestName, event.GuestEmail, event.GuestCompanyName, event.GuestComment,
			event.DocumentID, cancelledAt, cancellationReason,
		); err != nil {
			return ApplyResult{}, err
		}
		confirmedDelta, cancelledDelta = transitionDeltas(prev, event.Status)
		result = ApplyResult{
			StatusChanged:  prev != event.Status,
			PreviousStatus: prev,
		}
	}

	if confirmedDelta != 0 || cancelledDelta != 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE leads
			SET confirmed_booking_count = confirmed_booking_count + $2,
			    cancelled_booking_count = cancelled_booking_count + $3,
			    updated_at = now()
			WHERE id = $1
		`, leadID, confirmedDelta, cancelledDelta); err != nil {
			return ApplyResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// LatestRecord returns the most recently created booking record for a lead,
// or nil when the ledger is empty. Ties on created_at break on id so the
// result is deterministic.
func (r *Repository) LatestRecord(ctx context.Context, leadID uuid.UUID) (*BookingRecord, error) {
	var rec BookingRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, external_event_id, status,
		       scheduled_start, scheduled_end,
		       guest_name, guest_email, guest_company_name, guest_comment,
		       document_id, cancelled_at, cancellation_reason,
		       created_at, updated_at
		FROM booking_records
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, leadID).Scan(
		&rec.ID, &rec.LeadID, &rec.ExternalEventID, &rec.Status,
		&rec.ScheduledStart, &rec.ScheduledEnd,
		&rec.GuestName, &rec.GuestEmail, &rec.GuestCompanyName, &rec.GuestComment,
		&rec.DocumentID, &rec.CancelledAt, &rec.CancellationReason,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

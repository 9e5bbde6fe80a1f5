// Package followup provides the follow-up timer bounded context.
// It schedules per-viewer follow-up notifications for viewed documents and
// sweeps due timers for dispatch.
package followup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Task status values. Scheduled is the only non-terminal state.
const (
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Task is a one-shot follow-up notification job tied to a
// (lead, document, viewer) key. Terminal rows for the same key accumulate
// historically; at most one scheduled row exists per key at a time.
type Task struct {
	ID                 uuid.UUID
	LeadID             uuid.UUID
	DocumentID         uuid.UUID
	ViewerIdentity     string
	TriggeredAt        time.Time
	ScheduledFor       time.Time
	Status             string
	CancellationReason *string
	FailureMessage     *string
	SentAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DueTask is a due scheduled task joined with the lead and document data the
// sweeper needs, so dispatch does not require per-task lookups.
type DueTask struct {
	Task
	LeadName         string
	LeadContactEmail *string
	LeadDealStatus   string
	DocumentTitle    string
}

// Repository persists follow-up tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new follow-up repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertScheduled creates a scheduled task for the key or re-triggers the
// existing one. Concurrent calls for the same key are serialized with a
// per-key advisory lock so at most one scheduled row exists per key.
func (r *Repository) UpsertScheduled(ctx context.Context, leadID, documentID uuid.UUID, viewerIdentity string, triggeredAt, scheduledFor time.Time) (Task, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Task{}, false, err
	}
	defer tx.Rollback(ctx)

	lockKey := leadID.String() + "/" + documentID.String() + "/" + viewerIdentity
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return Task{}, false, err
	}

	var task Task
	created := false
	err = tx.QueryRow(ctx, `
		UPDATE followup_tasks
		SET triggered_at = $4, scheduled_for = $5,
		    cancellation_reason = NULL, failure_message = NULL,
		    updated_at = now()
		WHERE lead_id = $1 AND document_id = $2 AND viewer_identity = $3 AND status = $6
		RETURNING id, lead_id, document_id, viewer_identity, triggered_at, scheduled_for,
		          status, cancellation_reason, failure_message, sent_at, created_at, updated_at
	`, leadID, documentID, viewerIdentity, triggeredAt, scheduledFor, StatusScheduled).Scan(
		&task.ID, &task.LeadID, &task.DocumentID, &task.ViewerIdentity,
		&task.TriggeredAt, &task.ScheduledFor, &task.Status,
		&task.CancellationReason, &task.FailureMessage, &task.SentAt,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		created = true
		err = tx.QueryRow(ctx, `
			INSERT INTO followup_tasks (id, lead_id, document_id, viewer_identity, triggered_at, scheduled_for, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, lead_id, document_id, viewer_identity, triggered_at, scheduled_for,
			          status, cancellation_reason, failure_message, sent_at, created_at, updated_at
		`, uuid.New(), leadID, documentID, viewerIdentity, triggeredAt, scheduledFor, StatusScheduled).Scan(
			&task.ID, &task.LeadID, &task.DocumentID, &task.ViewerIdentity,
			&task.TriggeredAt, &task.ScheduledFor, &task.Status,
			&task.CancellationReason, &task.FailureMessage, &task.SentAt,
			&task.CreatedAt, &task.UpdatedAt,
		)
	}
	if err != nil {
		return Task{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Task{}, false, err
	}
	return task, created, nil
}

// CancelScheduledByKey cancels all scheduled tasks for one
// (lead, document, viewer) key and returns how many were cancelled.
func (r *Repository) CancelScheduledByKey(ctx context.Context, leadID, documentID uuid.UUID, viewerIdentity, reason string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup_tasks
		SET status = $5, cancellation_reason = $4, updated_at = now()
		WHERE lead_id = $1 AND document_id = $2 AND viewer_identity = $3 AND status = $6
	`, leadID, documentID, viewerIdentity, reason, StatusCancelled, StatusScheduled)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CancelAllForLead cancels every scheduled task for the lead across all
// documents and viewers.
func (r *Repository) CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup_tasks
		SET status = $3, cancellation_reason = $2, updated_at = now()
		WHERE lead_id = $1 AND status = $4
	`, leadID, reason, StatusCancelled, StatusScheduled)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CancelTask cancels a single task. The status guard makes the transition a
// no-op when the task already reached a terminal state.
func (r *Repository) CancelTask(ctx context.Context, taskID uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followup_tasks
		SET status = $3, cancellation_reason = $2, updated_at = now()
		WHERE id = $1 AND status = $4
	`, taskID, reason, StatusCancelled, StatusScheduled)
	return err
}

// ListDue returns all scheduled tasks due at the given time, with lead and
// document data pre-loaded for the sweeper.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]DueTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.lead_id, t.document_id, t.viewer_identity, t.triggered_at, t.scheduled_for,
		       t.status, t.cancellation_reason, t.failure_message, t.sent_at, t.created_at, t.updated_at,
		       l.name, l.contact_email, l.deal_status,
		       d.title
		FROM followup_tasks t
		JOIN leads l ON l.id = t.lead_id
		JOIN documents d ON d.id = t.document_id
		WHERE t.status = $1 AND t.scheduled_for <= $2
		ORDER BY t.scheduled_for ASC
	`, StatusScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []DueTask
	for rows.Next() {
		var task DueTask
		if err := rows.Scan(
			&task.ID, &task.LeadID, &task.DocumentID, &task.ViewerIdentity,
			&task.TriggeredAt, &task.ScheduledFor, &task.Status,
			&task.CancellationReason, &task.FailureMessage, &task.SentAt,
			&task.CreatedAt, &task.UpdatedAt,
			&task.LeadName, &task.LeadContactEmail, &task.LeadDealStatus,
			&task.DocumentTitle,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// MarkSent transitions a scheduled task to sent.
func (r *Repository) MarkSent(ctx context.Context, taskID uuid.UUID, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followup_tasks
		SET status = $3, sent_at = $2, updated_at = now()
		WHERE id = $1 AND status = $4
	`, taskID, sentAt, StatusSent, StatusScheduled)
	return err
}

// MarkFailed transitions a scheduled task to failed with the dispatch error.
func (r *Repository) MarkFailed(ctx context.Context, taskID uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followup_tasks
		SET status = $3, failure_message = $2, updated_at = now()
		WHERE id = $1 AND status = $4
	`, taskID, message, StatusFailed, StatusScheduled)
	return err
}

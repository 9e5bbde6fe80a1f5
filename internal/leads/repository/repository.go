// Package repository provides read access to leads and their documents.
// Leads are owned by an external CRM subsystem; this core only reads them,
// except for the booking counters maintained by the booking ledger.
package repository

import (
	"context"
	"errors"
	"time"

	"dealroom_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deal status values for a lead.
const (
	DealStatusProspecting = "prospecting"
	DealStatusWon         = "won"
	DealStatusLost        = "lost"
)

// Lead is a prospective customer account. It owns documents, a deal status
// and the booking counters maintained by the booking ledger.
type Lead struct {
	ID                    uuid.UUID
	Name                  string
	ContactEmail          *string
	DealStatus            string
	ConfirmedBookingCount int
	CancelledBookingCount int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasContactEmail reports whether the lead has a non-empty contact email.
func (l Lead) HasContactEmail() bool {
	return l.ContactEmail != nil && *l.ContactEmail != ""
}

// Document is a shareable document belonging to a lead.
type Document struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Title     string
	CreatedAt time.Time
}

// Repository provides data access for leads and documents.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID retrieves a lead by its id.
func (r *Repository) GetByID(ctx context.Context, leadID uuid.UUID) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, contact_email, deal_status, confirmed_booking_count, cancelled_booking_count, created_at, updated_at
		FROM leads
		WHERE id = $1
	`, leadID).Scan(
		&lead.ID, &lead.Name, &lead.ContactEmail, &lead.DealStatus,
		&lead.ConfirmedBookingCount, &lead.CancelledBookingCount,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// GetDocument retrieves a document by id, scoped to the owning lead.
func (r *Repository) GetDocument(ctx context.Context, leadID, documentID uuid.UUID) (Document, error) {
	var doc Document
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, title, created_at
		FROM documents
		WHERE id = $1 AND lead_id = $2
	`, documentID, leadID).Scan(&doc.ID, &doc.LeadID, &doc.Title, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, apperr.NotFound("document not found")
	}
	return doc, err
}

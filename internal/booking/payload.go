package booking

import "time"

// Webhook types sent by the booking provider.
const (
	WebhookTypeConfirmed = "event_confirmed"
	WebhookTypeCancelled = "event_cancelled"
)

// Form field types the provider uses for guest answers.
const (
	FieldTypeGuestName    = "guest_name"
	FieldTypeGuestEmail   = "guest_email"
	FieldTypeCompanyName  = "company_name"
	FieldTypeGuestComment = "guest_comment"
)

// WebhookPayload is the raw provider webhook body.
type WebhookPayload struct {
	WebhookType string       `json:"webhook_type"`
	CalendarURL string       `json:"calendar_url"`
	Event       EventPayload `json:"event"`
}

// EventPayload is the booking event portion of the provider payload.
type EventPayload struct {
	ID                 string      `json:"id"`
	StartTime          *time.Time  `json:"start_time"`
	EndTime            *time.Time  `json:"end_time"`
	CancelledAt        *time.Time  `json:"cancelled_at"`
	CancellationReason *string     `json:"cancellation_reason"`
	Form               []FormField `json:"form"`
}

// FormField is one answered form entry on the provider's booking page.
type FormField struct {
	FieldType string `json:"field_type"`
	Value     string `json:"value"`
}

// formValue returns the value of the first form entry with the given type.
func (e EventPayload) formValue(fieldType string) string {
	for _, f := range e.Form {
		if f.FieldType == fieldType {
			return f.Value
		}
	}
	return ""
}

package booking

import (
	"net/url"

	"dealroom_backend/platform/apperr"

	"github.com/google/uuid"
)

// leadIDExtractor attempts to pull the owning lead id out of a provider
// payload. Extractors are tried in order; the first hit wins.
type leadIDExtractor func(payload WebhookPayload) (uuid.UUID, bool)

var leadIDExtractors = []leadIDExtractor{
	extractLeadIDFromCalendarURL,
	extractLeadIDFromGuestComment,
}

// ResolveLeadID resolves the lead id from a provider payload.
// Precedence: calendar_url query parameter, then a UUID-shaped guest
// comment. Returns an unresolved error when neither yields an id.
func ResolveLeadID(payload WebhookPayload) (uuid.UUID, error) {
	for _, extract := range leadIDExtractors {
		if id, ok := extract(payload); ok {
			return id, nil
		}
	}
	return uuid.Nil, apperr.Unresolved("could not resolve lead id from payload")
}

// ResolveDocumentID resolves the optional document id from the calendar_url
// query string. There is no guest-comment fallback for documents.
func ResolveDocumentID(payload WebhookPayload) *uuid.UUID {
	if id, ok := queryParamUUID(payload.CalendarURL, "document_id"); ok {
		return &id
	}
	return nil
}

func extractLeadIDFromCalendarURL(payload WebhookPayload) (uuid.UUID, bool) {
	return queryParamUUID(payload.CalendarURL, "company_id")
}

func extractLeadIDFromGuestComment(payload WebhookPayload) (uuid.UUID, bool) {
	comment := payload.Event.formValue(FieldTypeGuestComment)
	if comment == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(comment)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func queryParamUUID(rawURL, param string) (uuid.UUID, bool) {
	if rawURL == "" {
		return uuid.Nil, false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return uuid.Nil, false
	}
	value := parsed.Query().Get(param)
	if value == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

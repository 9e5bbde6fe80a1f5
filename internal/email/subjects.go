package email

import (
	"fmt"
	"strings"
)

const defaultFollowupSubject = "Any questions?"

// FormatSubject renders the configured subject template with the document
// title. A template without a %s placeholder is used verbatim; an empty
// template falls back to the default subject.
func FormatSubject(template, documentTitle string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return defaultFollowupSubject
	}
	if !strings.Contains(template, "%s") {
		return template
	}
	return fmt.Sprintf(template, documentTitle)
}

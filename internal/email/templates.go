package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type followupEmailData struct {
	baseEmailData
	LeadName      string
	DocumentTitle string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderFollowupEmail(msg FollowupMessage) (string, error) {
	return renderEmailTemplate("followup.html", followupEmailData{
		baseEmailData: baseEmailData{
			Title:    msg.Subject,
			Heading:  msg.Subject,
			CTALabel: "View document",
			CTAURL:   msg.DocumentURL,
		},
		LeadName:      msg.LeadName,
		DocumentTitle: msg.DocumentTitle,
	})
}

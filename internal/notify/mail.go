package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/diagnosis/concierge/internal/platform/mailer"
	"github.com/diagnosis/concierge/pkg/logger"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=zero").Parse(body)),
	}
}

var templates = map[string]mailTemplate{
	TemplateRequestCreated: mustTemplate(TemplateRequestCreated,
		`New request: {{.service_name}} for room {{.room_number}}`,
		`Room {{.room_number}} requested {{.quantity}} x {{.service_name}}.
Guest: {{.guest_name}}
{{if .notes}}Notes: {{.notes}}
{{end}}Request #{{.request_id}}
`),
	TemplateRequestCompleted: mustTemplate(TemplateRequestCompleted,
		`Your {{.service_name}} request is complete`,
		`Hello {{.guest_name}},

Your request for {{.service_name}} in room {{.room_number}} has been completed.
{{if .hotel_name}}
{{.hotel_name}}
{{end}}`),
}

// Render fills the named template with data.
func Render(name string, data Data) (subject, body string, err error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, map[string]any(data)); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&bb, map[string]any(data)); err != nil {
		return "", "", err
	}
	return sb.String(), bb.String(), nil
}

// MailNotifier renders a template and sends it by email.
type MailNotifier struct {
	mail mailer.Service
}

func NewMailNotifier(m mailer.Service) *MailNotifier {
	return &MailNotifier{mail: m}
}

func (m *MailNotifier) Notify(ctx context.Context, class RecipientClass, template string, data Data) error {
	to := data.Recipient()
	if to == "" {
		return ErrNoRecipient
	}
	subject, body, err := Render(template, data)
	if err != nil {
		return err
	}
	id, err := m.mail.Send(ctx, to, "", subject, body, "")
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", template, class, err)
	}
	logger.DebugContext(ctx, "Notification sent", "template", template, "class", class, "message_id", id)
	return nil
}

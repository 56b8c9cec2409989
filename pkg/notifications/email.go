package notifications

import (
	"bytes"
	"context"
	"errors"
	"html/template"

	"github.com/dmitrymomot/artshare/pkg/email"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

var ErrFailedToRender = errors.New("notifications: failed to render email")

var emailTemplates = template.Must(template.New("activated").Parse(
	`<p>Your {{if .PlanName}}{{.PlanName}}{{else}}paid{{end}} plan is active.</p>
{{- if .ExpiresAt}}
<p>{{if .CancelAtPeriodEnd}}Access ends{{else}}It renews{{end}} on {{.ExpiresAt.Format "January 2, 2006"}}.</p>
{{- end}}
{{- if .UsageReset}}
<p>Your monthly usage has been reset.</p>
{{- end}}`,
))

func init() {
	template.Must(emailTemplates.New("revoked").Parse(
		`<p>Your paid plan has ended. Your account is back on the free tier.</p>
<p>You can subscribe again at any time from your billing page.</p>`,
	))
}

var emailSubjects = map[entitlement.NotificationKind]string{
	entitlement.NotificationActivated: "Your plan is active",
	entitlement.NotificationRevoked:   "Your plan has ended",
}

// EmailNotifier emails the user about activations and revocations.
type EmailNotifier struct {
	sender email.Sender
}

// NewEmailNotifier creates an email notifier over sender.
func NewEmailNotifier(sender email.Sender) *EmailNotifier {
	if sender == nil {
		panic("notifications: email sender is required")
	}
	return &EmailNotifier{sender: sender}
}

// SendToUser emails n to the address carried in the notification.
// Notifications without an address or of an unknown kind are skipped.
func (e *EmailNotifier) SendToUser(ctx context.Context, _ string, n entitlement.Notification) error {
	subject, ok := emailSubjects[n.Kind]
	if !ok || n.Email == "" {
		return nil
	}

	var body bytes.Buffer
	name := "activated"
	if n.Kind == entitlement.NotificationRevoked {
		name = "revoked"
	}
	if err := emailTemplates.ExecuteTemplate(&body, name, n); err != nil {
		return errors.Join(ErrFailedToRender, err)
	}

	return e.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   n.Email,
		Subject:  subject,
		BodyHTML: body.String(),
		Tag:      string(n.Kind),
	})
}

package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"promptforge/config"
)

// Embedded email templates
var emailTemplates = map[string]string{
	"invitation": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .cta { display: inline-block; background: #6366f1; color: #fff; padding: 12px 24px; border-radius: 6px; text-decoration: none; margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You have been invited to join {{.TeamName}}</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>{{.InviterName}} invited you to join the team <strong>{{.TeamName}}</strong> on PromptForge as a {{.Role}}.</p>
        <p><a class="cta" href="{{.AcceptURL}}">Accept invitation</a></p>
        <p>This invitation expires on {{.ExpiresAt}}. If you were not expecting it, you can ignore this email.</p>
    </div>

    <div class="footer">
        <p>&copy; {{.Year}} PromptForge. All rights reserved.</p>
    </div>
</body>
</html>`,
}

// InvitationEmailData carries the fields the invitation template needs.
type InvitationEmailData struct {
	Subject     string
	TeamName    string
	InviterName string
	Role        string
	AcceptURL   string
	ExpiresAt   string
	Year        int
}

// Mailer sends transactional email through the configured SMTP relay.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
	}
}

// SendInvitation emails an invitation link for a pending team invitation.
func (m *Mailer) SendInvitation(to, teamName, inviterName, role, token string, expiresAt time.Time) error {
	data := InvitationEmailData{
		Subject:     fmt.Sprintf("Join %s on PromptForge", teamName),
		TeamName:    teamName,
		InviterName: inviterName,
		Role:        role,
		AcceptURL:   fmt.Sprintf("%s/invitations/accept?token=%s", config.AppConfig.AppBaseURL, token),
		ExpiresAt:   expiresAt.Format("January 2, 2006"),
		Year:        time.Now().Year(),
	}

	tmpl, err := template.New("invitation").Parse(emailTemplates["invitation"])
	if err != nil {
		return fmt.Errorf("failed to parse invitation template: %w", err)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", data.Subject)
	msg.SetBody("text/html", body.String())

	return m.dialer.DialAndSend(msg)
}

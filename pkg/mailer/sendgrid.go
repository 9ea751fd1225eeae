package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/pkg/config"
)

// Mailer sends transactional email through SendGrid.
type Mailer struct {
	client        *sendgrid.Client
	fromName      string
	fromEmail     string
	verifyBaseURL string
	logger        *zap.Logger
}

// New constructs a Mailer from configuration. A missing API key yields a
// mailer that only logs, which keeps local development working without
// SendGrid credentials.
func New(cfg config.MailConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	var client *sendgrid.Client
	if cfg.SendGridAPIKey != "" {
		client = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	}
	return &Mailer{
		client:        client,
		fromName:      cfg.FromName,
		fromEmail:     cfg.FromEmail,
		verifyBaseURL: cfg.VerifyBaseURL,
		logger:        logger,
	}
}

// SendVerifyEmail delivers the email-verification link for the given
// recipient and token.
func (m *Mailer) SendVerifyEmail(ctx context.Context, toEmail, toName, token string) error {
	link := fmt.Sprintf("%s?token=%s", m.verifyBaseURL, token)

	if m.client == nil {
		m.logger.Info("sendgrid disabled, skipping verification email",
			zap.String("email", toEmail), zap.String("link", link))
		return nil
	}

	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	subject := "Verify your email"
	plain := fmt.Sprintf("Please verify your email address by visiting: %s", link)
	html := fmt.Sprintf(`<p>Please verify your email address by clicking <a href="%s">this link</a>.</p>`, link)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send verification email: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

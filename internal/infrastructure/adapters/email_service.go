package adapters

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/tm-signals/signals_service/internal/domain/entities"
)

// EmailServiceConfig holds email service configuration
type EmailServiceConfig struct {
	APIKey      string
	FromEmail   string
	FromName    string
	Environment string
	Timeout     time.Duration
}

// mailSender is the part of the SendGrid client we use
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailService delivers digests by email through SendGrid. Without an API key
// (or in development) it runs in mock mode and only logs.
type EmailService struct {
	logger   *zap.Logger
	config   EmailServiceConfig
	client   mailSender
	mockMode bool
}

func NewEmailService(logger *zap.Logger, config EmailServiceConfig) *EmailService {
	mockMode := config.Environment == "development" || config.APIKey == ""
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	var client mailSender
	if !mockMode {
		client = sendgrid.NewSendClient(config.APIKey)
	}

	return &EmailService{
		logger:   logger,
		config:   config,
		client:   client,
		mockMode: mockMode,
	}
}

func (e *EmailService) MockMode() bool {
	return e.mockMode
}

// SendDigest emails a digest to a single recipient
func (e *EmailService) SendDigest(ctx context.Context, to string, digest entities.Digest) error {
	subject := digest.Title
	if subject == "" {
		subject = "Token signals update"
	}
	return e.sendEmail(ctx, to, subject, digestHTML(digest), digest.Text)
}

func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	if e.mockMode {
		e.logger.Info("Email sent successfully (MOCK)",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("content_preview", preview(textContent, 100)))
		return nil
	}

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), textContent, htmlContent)

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		e.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("Email service returned error",
			zap.String("to", to),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d", response.StatusCode)
	}

	e.logger.Info("Email sent successfully",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("status_code", response.StatusCode))
	return nil
}

func digestHTML(digest entities.Digest) string {
	lines := strings.Split(html.EscapeString(digest.Text), "\n")
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2 style="color: #333;">%s</h2>
	<p style="color: #444; font-size: 15px; line-height: 1.5;">%s</p>
	<p style="color: #888; font-size: 12px;">You receive this because you subscribed to signal updates. Send /unsubscribe to the bot to stop.</p>
</body>
</html>`, html.EscapeString(digest.Title), strings.Join(lines, "<br>"))
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

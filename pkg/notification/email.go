package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the outbound mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Notifier is invoked after a new federated account is provisioned.
// Notification failures never fail the login.
type Notifier interface {
	NotifyWelcome(ctx context.Context, email, name string) error
}

// EmailNotifier sends a welcome email over SMTP
type EmailNotifier struct {
	from   string
	client *mail.Client
}

// NewEmailNotifier creates a mail client for welcome notifications
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &EmailNotifier{from: config.From, client: client}, nil
}

// NotifyWelcome sends the first-login welcome message
func (e *EmailNotifier) NotifyWelcome(ctx context.Context, email, name string) error {
	msg := mail.NewMsg()
	if err := msg.From(e.from); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}

	greeting := name
	if greeting == "" {
		greeting = email
	}
	msg.Subject("Your account is ready")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Hi %s,\n\nYour account was created from your first sign-in. You can now log in with your identity provider at any time.\n", greeting))

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	slog.Info("Welcome email sent", "email", email)
	return nil
}

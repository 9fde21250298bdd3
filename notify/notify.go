// Package notify provides [stellarauth.Notifier] implementations: a
// structured-log notifier for development and a minimal SMTP notifier
// for production.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// LogNotifier writes the token to the structured log instead of sending
// email. Development only: tokens in logs are credentials.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) log() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *LogNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	n.log().InfoContext(ctx, "verification email", "to", email, "token", token)
	return nil
}

func (n *LogNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	n.log().InfoContext(ctx, "password reset email", "to", email, "token", token)
	return nil
}

// SMTPConfig configures the SMTP notifier. VerifyURL and ResetURL are
// templates the token is appended to as a query value.
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string

	VerifyURL string
	ResetURL  string
}

// SMTPNotifier sends plain-text emails over authenticated SMTP.
type SMTPNotifier struct {
	config SMTPConfig
	auth   smtp.Auth
}

// NewSMTPNotifier validates cfg and returns a ready notifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Addr == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp addr and from address required")
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		host := cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &SMTPNotifier{config: cfg, auth: auth}, nil
}

func (n *SMTPNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := n.config.VerifyURL + "?token=" + token
	body := "Verify your email address by opening the link below:\r\n\r\n" + link + "\r\n"
	return n.send(ctx, email, "Verify your email address", body)
}

func (n *SMTPNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	link := n.config.ResetURL + "?token=" + token
	body := "A password reset was requested for your account. If this was you, " +
		"open the link below:\r\n\r\n" + link + "\r\n\r\n" +
		"If you did not request a reset, no action is needed.\r\n"
	return n.send(ctx, email, "Reset your password", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.config.From, to, subject, body)
	if err := smtp.SendMail(n.config.Addr, n.auth, n.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

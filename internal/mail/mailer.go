// Package mail sends match emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/config"
)

// Mailer delivers a match email to one recipient.
type Mailer interface {
	SendMatchEmail(ctx context.Context, email, itemType, itemTitle string, matchPercentage int) error
}

// New returns a LogMailer when cfg names no SMTP host, otherwise an SMTPMailer
// behind a circuit breaker.
func New(cfg *config.EmailConfig, logger *zap.Logger) Mailer {
	if cfg == nil || cfg.SMTPHost == "" {
		return NewLogMailer(logger)
	}
	return NewBreakerMailer(NewSMTPMailer(cfg), "smtp", logger)
}

// MatchMessage is the rendered subject and plain-text body of a match email.
type MatchMessage struct {
	Subject string
	Body    string
}

// RenderMatchMessage renders the email for a match on an item of itemType
// (already a display label such as "Found") titled itemTitle.
func RenderMatchMessage(itemType, itemTitle string, matchPercentage int) MatchMessage {
	title := strings.TrimSpace(itemTitle)
	var body strings.Builder
	fmt.Fprintf(&body, "Good news! A %s item may match yours.\r\n\r\n", strings.ToLower(itemType))
	fmt.Fprintf(&body, "Item: %s\r\n", title)
	fmt.Fprintf(&body, "Match: %d%%\r\n\r\n", matchPercentage)
	body.WriteString("Sign in to the campus lost & found to review the match and contact the other party.\r\n")
	return MatchMessage{
		Subject: fmt.Sprintf("Possible match: %s item %q (%d%%)", itemType, title, matchPercentage),
		Body:    body.String(),
	}
}

// ErrInvalidAddress is returned for an empty or malformed recipient address.
var ErrInvalidAddress = errors.New("invalid email address")

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAddress, email, err)
	}
	if addr.Address != email {
		return fmt.Errorf("%w %q", ErrInvalidAddress, email)
	}
	return nil
}

// LogMailer logs match emails instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendMatchEmail logs the rendered message.
func (m *LogMailer) SendMatchEmail(ctx context.Context, email, itemType, itemTitle string, matchPercentage int) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	msg := RenderMatchMessage(itemType, itemTitle, matchPercentage)
	m.logger.Info("match email (smtp disabled)",
		zap.String("to", email),
		zap.String("subject", msg.Subject),
		zap.Int("match_percentage", matchPercentage))
	return nil
}

package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/hyperjump/otoshimono/internal/config"
)

// SMTPMailer sends match emails through an SMTP relay.
type SMTPMailer struct {
	config  config.EmailConfig
	timeout time.Duration
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg *config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		config:  *cfg,
		timeout: 30 * time.Second,
	}
}

// SendMatchEmail renders and sends the match email to one recipient.
func (m *SMTPMailer) SendMatchEmail(ctx context.Context, email, itemType, itemTitle string, matchPercentage int) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if m.config.From == "" {
		return fmt.Errorf("email sender address is not configured")
	}
	msg := m.buildMessage(email, RenderMatchMessage(itemType, itemTitle, matchPercentage))
	return m.send(ctx, email, msg)
}

func (m *SMTPMailer) buildMessage(to string, rendered MatchMessage) string {
	var msg strings.Builder
	fromName := m.config.FromName
	if fromName == "" {
		fromName = "Campus Lost & Found"
	}
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, m.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", rendered.Subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(rendered.Body)
	return msg.String()
}

func (m *SMTPMailer) send(ctx context.Context, to, msg string) error {
	addr := net.JoinHostPort(m.config.SMTPHost, fmt.Sprint(m.config.SMTPPort))

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	client, err := smtp.NewClient(conn, m.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if m.config.UseTLSOrDefault() {
		tlsConfig := &tls.Config{
			ServerName: m.config.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if m.config.SMTPUser != "" && m.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", m.config.SMTPUser, m.config.SMTPPassword, m.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once DATA closes; a failed QUIT is not a delivery failure.
	_ = client.Quit()
	return nil
}

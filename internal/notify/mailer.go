// Package notify delivers outbound notification emails. The only sender today
// is the password reset flow. The mailer is a no-op when notifications are
// disabled or the SMTP host is unset, so callers never need to branch on
// deployment environment.
package notify

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/platform-iam/platform-iam/internal/config"
)

// Mailer sends plain-text notification emails over SMTP.
type Mailer struct {
	cfg *config.NotificationsConfig
}

// NewMailer creates a Mailer from notification configuration.
func NewMailer(cfg *config.NotificationsConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether the mailer will actually deliver anything.
func (m *Mailer) Enabled() bool {
	return m.cfg != nil && m.cfg.Enabled && m.cfg.SMTP.Host != ""
}

// SendPasswordReset emails a reset link containing the one-time token.
// Silently succeeds when the mailer is disabled; the reset flow must not
// reveal delivery state to the API caller.
func (m *Mailer) SendPasswordReset(toEmail, name, resetURL string, expiresAt time.Time) error {
	if !m.Enabled() {
		slog.Debug("mailer disabled, skipping password reset email", "to", toEmail)
		return nil
	}

	subject := "Password reset requested"
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		"A password reset was requested for your account. Use the link below to choose a new password:",
		"",
		"  " + resetURL,
		"",
		fmt.Sprintf("The link is valid until %s and can be used once.", expiresAt.UTC().Format(time.RFC1123)),
		"",
		"If you did not request this, you can ignore this email; your password is unchanged.",
	}, "\r\n")

	return m.send(toEmail, subject, body)
}

// send composes and delivers a plain-text email via SMTP.
func (m *Mailer) send(toEmail, subject, body string) error {
	smtpCfg := &m.cfg.SMTP
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		smtpCfg.From, toEmail, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)
	auth := smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)

	if smtpCfg.UseTLS {
		return sendMailTLS(addr, smtpCfg.Host, auth, smtpCfg.From, []string{toEmail}, msg)
	}
	return smtp.SendMail(addr, auth, smtpCfg.From, []string{toEmail}, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
// For port 587 STARTTLS the dial fails and we fall back to smtp.SendMail,
// which performs the upgrade itself, so UseTLS=true always means an encrypted
// connection regardless of port.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

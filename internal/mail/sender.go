package mail

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"harvestbot/internal/config"
)

// Sender delivers HTML mail over SMTP. It is a thin collaborator: delivery
// failures surface to the caller, which decides on the draft fallback.
type Sender struct {
	cfg config.SMTPConfig
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(subject, htmlBody string) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	if len(s.cfg.Recipients) == 0 {
		return fmt.Errorf("no report recipients configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := buildMessage(s.cfg.From, s.cfg.Recipients, subject, htmlBody)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, s.cfg.Recipients, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	slog.Info("report email sent", "recipients", len(s.cfg.Recipients), "subject", subject)
	return nil
}

func buildMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

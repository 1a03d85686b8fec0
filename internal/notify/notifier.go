package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"

	"github.com/domodwyer/mailyak/v3"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Inline  []Attachment
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Notifier delivers a composed message.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPNotifier sends mail through an SMTP relay, upgrading to STARTTLS when offered.
type SMTPNotifier struct {
	cfg  SMTPConfig
	auth smtp.Auth
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{cfg: cfg, auth: auth}
}

func (n *SMTPNotifier) compose(msg *Message) *mailyak.MailYak {
	mail := mailyak.New(n.cfg.Host+":"+strconv.Itoa(n.cfg.Port), n.auth)
	mail.To(msg.To)
	mail.From(n.cfg.From)
	mail.FromName(n.cfg.FromName)
	mail.Subject(msg.Subject)
	mail.HTML().Set(msg.HTML)
	mail.Plain().Set(msg.Text)
	for _, a := range msg.Inline {
		mail.AttachInlineWithMimeType(a.Name, bytes.NewReader(a.Data), a.ContentType)
	}
	return mail
}

// Send gives up waiting when ctx is done. The SMTP exchange itself cannot be
// interrupted and finishes in the background.
func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	mail := n.compose(msg)

	done := make(chan error, 1)
	go func() {
		done <- mail.Send()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

// LogNotifier records outbound mail in the log when no relay is configured.
// Bodies are never logged.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg *Message) error {
	n.logger.Info("Mail delivery disabled, dropping message",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Inline),
	)
	return nil
}

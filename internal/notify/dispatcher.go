package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/monitoring"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "Monday, January 2, 2006"
	timeLayout = "3:04 PM"

	BookingWarning = "ticket booked but the confirmation email could not be sent"
)

type DispatcherConfig struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Dispatcher renders notifications and delivers them with bounded retries.
// Booking notifications are best effort: failures come back as a warning.
type Dispatcher struct {
	notifier Notifier
	cfg      DispatcherConfig
	monitor  *monitoring.Monitor
	logger   *slog.Logger
}

func NewDispatcher(notifier Notifier, cfg DispatcherConfig, monitor *monitoring.Monitor, logger *slog.Logger) *Dispatcher {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{notifier: notifier, cfg: cfg, monitor: monitor, logger: logger}
}

// NotifyBooked sends the ticket confirmation. It returns a warning message
// when the email could not be delivered and "" otherwise.
func (d *Dispatcher) NotifyBooked(ctx context.Context, ticket *models.Ticket, event *models.Event, user *models.User) string {
	msg, err := composeBooked(ticket, event, user)
	if err != nil {
		d.logger.Error("Failed to compose booking confirmation", "ticket_id", ticket.ID.Hex(), "error", err)
		d.monitor.TrackNotificationFailure("booking")
		return BookingWarning
	}

	if err := d.deliver(ctx, msg); err != nil {
		d.logger.Warn("Booking confirmation not delivered",
			"ticket_id", ticket.ID.Hex(),
			"event_id", event.ID.Hex(),
			"error", err,
		)
		d.monitor.TrackNotificationFailure("booking")
		return BookingWarning
	}
	return ""
}

// SendOTP delivers a password reset code.
func (d *Dispatcher) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	view := otpView{Code: code, Minutes: int(ttl.Minutes())}

	var html, text bytes.Buffer
	if err := otpHTML.Execute(&html, view); err != nil {
		return fmt.Errorf("render otp html: %w", err)
	}
	if err := otpText.Execute(&text, view); err != nil {
		return fmt.Errorf("render otp text: %w", err)
	}

	err := d.deliver(ctx, &Message{
		To:      email,
		Subject: "Your password reset code",
		HTML:    html.String(),
		Text:    text.String(),
	})
	if err != nil {
		d.monitor.TrackNotificationFailure("otp")
		return models.Upstream("send otp", err)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) error {
	var err error
	attempt := 1
	for ; attempt <= d.cfg.Retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		err = d.notifier.Send(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}

		d.logger.Debug("Mail attempt failed", "attempt", attempt, "to", msg.To, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			// the timed out send may still be delivered
			d.logger.Warn("Mail attempt timed out, not retrying", "attempt", attempt, "to", msg.To)
			break
		}
		if attempt == d.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("after %d attempts: %w", min(attempt, d.cfg.Retries), err)
}

func composeBooked(ticket *models.Ticket, event *models.Event, user *models.User) (*Message, error) {
	png, err := helpers.DecodePNGDataURL(ticket.QRCode)
	if err != nil {
		return nil, fmt.Errorf("decode ticket qr: %w", err)
	}

	view := bookedView{
		Name:     user.Name,
		Title:    event.Title,
		Date:     event.Date.Format(dateLayout),
		Time:     event.StartTime.Format(timeLayout) + " - " + event.EndTime.Format(timeLayout),
		Location: event.Location.String(),
		Price:    FormatPrice(event),
		TicketID: ticket.ID.Hex(),
		QRName:   qrAttachmentName,
	}

	var html, text bytes.Buffer
	if err := bookedHTML.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render booking html: %w", err)
	}
	if err := bookedText.Execute(&text, view); err != nil {
		return nil, fmt.Errorf("render booking text: %w", err)
	}

	return &Message{
		To:      user.Email,
		Subject: "Your ticket for " + event.Title,
		HTML:    html.String(),
		Text:    text.String(),
		Inline: []Attachment{{
			Name:        qrAttachmentName,
			ContentType: "image/png",
			Data:        png,
		}},
	}, nil
}

func FormatPrice(event *models.Event) string {
	if event.IsFree() {
		return "Free"
	}
	return decimal.NewFromFloat(*event.Price).StringFixed(2) + " " + strings.ToUpper(event.Currency)
}

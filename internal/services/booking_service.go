package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joshua-takyi/eventify/internal/gateway"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/monitoring"
	"github.com/joshua-takyi/eventify/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingNotifier delivers the booking confirmation. It reports failures as a
// warning instead of an error.
type BookingNotifier interface {
	NotifyBooked(ctx context.Context, ticket *models.Ticket, event *models.Event, user *models.User) string
}

// BookingResult carries the ticket and an optional warning for the caller.
type BookingResult struct {
	Ticket  *models.Ticket  `json:"ticket,omitempty"`
	Payment *models.Payment `json:"payment,omitempty"`
	Warning string          `json:"-"`
}

type PaidBookingResult struct {
	Payment  *models.Payment   `json:"payment"`
	Checkout *gateway.Checkout `json:"checkout"`
}

// ConfirmRequest is a provider report waiting to be settled.
type ConfirmRequest struct {
	Provider string
	Report   gateway.Report
	// Viewer is set when a signed-in user confirms by session id. Provider
	// callbacks leave it nil.
	Viewer *Viewer
}

// BookingService coordinates the ledger, the registry, payments and notifications.
type BookingService struct {
	ledger   *InventoryLedger
	registry *TicketRegistry
	payments *PaymentService
	events   models.EventRepo
	users    models.UserRepo
	notifier BookingNotifier
	monitor  *monitoring.Monitor
	logger   *slog.Logger
}

func NewBookingService(
	ledger *InventoryLedger,
	registry *TicketRegistry,
	payments *PaymentService,
	events models.EventRepo,
	users models.UserRepo,
	notifier BookingNotifier,
	monitor *monitoring.Monitor,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		ledger:   ledger,
		registry: registry,
		payments: payments,
		events:   events,
		users:    users,
		notifier: notifier,
		monitor:  monitor,
		logger:   logger,
	}
}

// BookFree reserves a seat and issues a ticket for a free event.
func (bs *BookingService) BookFree(ctx context.Context, eventID primitive.ObjectID, user *models.User) (*BookingResult, error) {
	event, err := bs.events.GetEventByID(ctx, eventID)
	if err != nil {
		bs.monitor.TrackBooking("book_free", "failed")
		return nil, err
	}
	if !event.IsFree() {
		bs.monitor.TrackBooking("book_free", "rejected")
		return nil, models.ErrPaidEvent
	}

	reserved, err := bs.ledger.Reserve(ctx, eventID)
	if err != nil {
		bs.monitor.TrackBooking("book_free", "rejected")
		return nil, err
	}

	ticket, err := bs.registry.Issue(ctx, eventID, user.ID, nil)
	if err != nil {
		if rerr := bs.ledger.Release(ctx, eventID); rerr != nil {
			bs.logger.Error("Failed to release seat after issuance failure", "event_id", eventID.Hex(), "error", rerr)
		}
		bs.monitor.TrackBooking("book_free", "rejected")
		return nil, err
	}

	bs.monitor.TrackBooking("book_free", "success")
	bs.logger.Info("Free ticket booked", "ticket_id", ticket.ID.Hex(), "event_id", eventID.Hex(), "user_id", user.ID.Hex())

	return &BookingResult{
		Ticket:  ticket,
		Warning: bs.notifier.NotifyBooked(ctx, ticket, reserved, user),
	}, nil
}

// InitiatePaidBooking starts checkout with the chosen provider. No seat is held
// until the payment is confirmed.
func (bs *BookingService) InitiatePaidBooking(ctx context.Context, eventID primitive.ObjectID, user *models.User, provider string) (*PaidBookingResult, error) {
	payment, checkout, err := bs.payments.Initiate(ctx, eventID, user, provider)
	if err != nil {
		bs.monitor.TrackBooking("initiate_paid", "failed")
		return nil, err
	}
	bs.monitor.TrackBooking("initiate_paid", "success")
	return &PaidBookingResult{Payment: payment, Checkout: checkout}, nil
}

// ConfirmPayment settles a provider report and, when this call issued the
// ticket, sends the confirmation.
func (bs *BookingService) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*BookingResult, error) {
	if req.Viewer != nil {
		if err := bs.payments.Authorize(ctx, req.Report.SessionID, *req.Viewer); err != nil {
			return nil, err
		}
	}

	settlement, err := bs.payments.Settle(ctx, req.Provider, req.Report)
	if err != nil {
		return nil, err
	}

	res, err := bs.payments.Confirm(ctx, settlement.CorrelationID, settlement.Status)
	if err != nil {
		if errors.Is(err, models.ErrReconciliationRequired) {
			bs.monitor.TrackBooking("confirm_payment", "reconciliation")
		} else {
			bs.monitor.TrackBooking("confirm_payment", "failed")
		}
		return nil, err
	}

	out := &BookingResult{Ticket: res.Ticket, Payment: res.Payment}
	if !res.Issued {
		return out, nil
	}
	bs.monitor.TrackBooking("confirm_payment", "success")

	user, err := bs.users.GetUserByID(ctx, res.Payment.UserID)
	if err != nil || res.Event == nil {
		bs.logger.Warn("Skipping booking confirmation, recipient or event unavailable",
			"ticket_id", res.Ticket.ID.Hex(),
			"error", err,
		)
		out.Warning = notify.BookingWarning
		return out, nil
	}
	out.Warning = bs.notifier.NotifyBooked(ctx, res.Ticket, res.Event, user)
	return out, nil
}

func (bs *BookingService) CancelTicket(ctx context.Context, ticketID primitive.ObjectID, user *models.User) (*models.Ticket, error) {
	ticket, err := bs.registry.Cancel(ctx, ticketID, user.ID)
	if err != nil {
		bs.monitor.TrackBooking("cancel", "rejected")
		return nil, err
	}
	bs.monitor.TrackBooking("cancel", "success")
	return ticket, nil
}

func (bs *BookingService) RefundTicket(ctx context.Context, ticketID primitive.ObjectID, user *models.User, reason string) (*models.Ticket, error) {
	ticket, err := bs.registry.Refund(ctx, ticketID, user.ID, reason)
	if err != nil {
		bs.monitor.TrackBooking("refund", "rejected")
		return nil, err
	}
	bs.monitor.TrackBooking("refund", "success")
	return ticket, nil
}

func (bs *BookingService) VerifyTicket(ctx context.Context, ticketID primitive.ObjectID, organizer *models.User) (*models.Ticket, error) {
	ticket, err := bs.registry.Verify(ctx, ticketID, organizer.ID)
	if err != nil {
		bs.monitor.TrackBooking("verify", "rejected")
		return nil, err
	}
	bs.monitor.TrackBooking("verify", "success")
	return ticket, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TicketRegistry owns the ticket lifecycle: issue, cancel, refund and gate verification.
type TicketRegistry struct {
	tickets       models.TicketRepo
	events        models.EventRepo
	ledger        *InventoryLedger
	verifyBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

func NewTicketRegistry(tickets models.TicketRepo, events models.EventRepo, ledger *InventoryLedger, verifyBaseURL string, logger *slog.Logger) *TicketRegistry {
	return &TicketRegistry{
		tickets:       tickets,
		events:        events,
		ledger:        ledger,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// VerifyURL is the content encoded in a ticket's QR code.
func (r *TicketRegistry) VerifyURL(ticketID primitive.ObjectID) string {
	return r.verifyBaseURL + "/" + ticketID.Hex()
}

// Issue creates a booked ticket for a seat the caller has already reserved.
func (r *TicketRegistry) Issue(ctx context.Context, eventID, userID primitive.ObjectID, paymentID *primitive.ObjectID) (*models.Ticket, error) {
	event, err := r.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsCancelled {
		return nil, models.ErrEventCancelled
	}

	now := r.now()
	ticket := &models.Ticket{
		ID:           primitive.NewObjectID(),
		EventID:      eventID,
		UserID:       userID,
		PaymentID:    paymentID,
		Status:       models.TicketStatusBooked,
		PurchaseDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	qr, _, err := helpers.GenerateQRCode(r.VerifyURL(ticket.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket qr code: %w", err)
	}
	ticket.QRCode = qr

	if err := r.tickets.InsertTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *TicketRegistry) Cancel(ctx context.Context, ticketID, userID primitive.ObjectID) (*models.Ticket, error) {
	return r.terminate(ctx, ticketID, userID, models.Termination{At: r.now()})
}

func (r *TicketRegistry) Refund(ctx context.Context, ticketID, userID primitive.ObjectID, reason string) (*models.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = models.DefaultRefundReason
	}
	return r.terminate(ctx, ticketID, userID, models.Termination{Refund: true, Reason: reason, At: r.now()})
}

// terminate is the single booked -> cancelled transition shared by cancel and refund.
// The seat goes back to the ledger only when this call made the transition.
func (r *TicketRegistry) terminate(ctx context.Context, ticketID, userID primitive.ObjectID, term models.Termination) (*models.Ticket, error) {
	ticket, err := r.tickets.TerminateTicket(ctx, ticketID, userID, term)
	if err != nil {
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to cancel ticket: %w", err)
		}
		current, err := r.tickets.GetTicketByID(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if err := current.CanTerminate(userID); err != nil {
			return nil, err
		}
		return nil, models.ErrAlreadyCancelled
	}

	if err := r.ledger.Release(ctx, ticket.EventID); err != nil {
		r.logger.Error("Failed to release seat after ticket cancellation",
			"ticket_id", ticket.ID.Hex(),
			"event_id", ticket.EventID.Hex(),
			"error", err,
		)
	}
	return ticket, nil
}

// Verify checks a ticket in at the gate. Only the event's organizer may do it.
func (r *TicketRegistry) Verify(ctx context.Context, ticketID, organizerID primitive.ObjectID) (*models.Ticket, error) {
	ticket, err := r.tickets.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	event, err := r.events.GetEventByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, models.ErrForbidden
	}
	if err := ticket.CanCheckIn(); err != nil {
		return nil, err
	}

	used, err := r.tickets.MarkTicketUsed(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to verify ticket: %w", err)
		}
		current, err := r.tickets.GetTicketByID(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if err := current.CanCheckIn(); err != nil {
			return nil, err
		}
		return nil, models.ErrAlreadyUsed
	}
	return used, nil
}

// Viewer identifies who is reading tickets.
type Viewer struct {
	UserID  primitive.ObjectID
	IsAdmin bool
}

// Get returns a ticket to its holder, the event organizer or an admin.
func (r *TicketRegistry) Get(ctx context.Context, ticketID primitive.ObjectID, viewer Viewer) (*models.Ticket, error) {
	ticket, err := r.tickets.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if viewer.IsAdmin || ticket.UserID == viewer.UserID {
		return ticket, nil
	}
	event, err := r.events.GetEventByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != viewer.UserID {
		return nil, models.ErrForbidden
	}
	return ticket, nil
}

func (r *TicketRegistry) ListMine(ctx context.Context, userID primitive.ObjectID, status string, page, limit int) ([]*models.Ticket, int64, error) {
	return r.tickets.ListTickets(ctx, models.TicketFilter{UserID: &userID, Status: status, Page: page, Limit: limit})
}

// ListForEvent lists an event's tickets for its organizer or an admin.
func (r *TicketRegistry) ListForEvent(ctx context.Context, eventID primitive.ObjectID, viewer Viewer, status string, page, limit int) ([]*models.Ticket, int64, error) {
	if err := r.authorizeEvent(ctx, eventID, viewer); err != nil {
		return nil, 0, err
	}
	return r.tickets.ListTickets(ctx, models.TicketFilter{EventID: &eventID, Status: status, Page: page, Limit: limit})
}

// TicketCount narrows a count. Mine restricts to the viewer's own tickets;
// otherwise an event is required unless the viewer is an admin.
type TicketCount struct {
	EventID *primitive.ObjectID
	Status  string
	Mine    bool
}

func (r *TicketRegistry) Count(ctx context.Context, q TicketCount, viewer Viewer) (int64, error) {
	if q.Status != "" && q.Status != models.TicketStatusBooked && q.Status != models.TicketStatusCancelled {
		return 0, models.Invalid("status must be booked or cancelled")
	}

	filter := models.TicketFilter{EventID: q.EventID, Status: q.Status}
	switch {
	case q.Mine:
		filter.UserID = &viewer.UserID
	case q.EventID != nil:
		if err := r.authorizeEvent(ctx, *q.EventID, viewer); err != nil {
			return 0, err
		}
	case !viewer.IsAdmin:
		return 0, models.ErrForbidden
	}
	return r.tickets.CountTickets(ctx, filter)
}

func (r *TicketRegistry) authorizeEvent(ctx context.Context, eventID primitive.ObjectID, viewer Viewer) error {
	event, err := r.events.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin && event.OrganizerID != viewer.UserID {
		return models.ErrForbidden
	}
	return nil
}

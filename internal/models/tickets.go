package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TicketStatusBooked    = "booked"
	TicketStatusCancelled = "cancelled"

	DefaultRefundReason = "No reason provided"
)

type Ticket struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	EventID      primitive.ObjectID  `bson:"event_id" json:"event_id"`
	UserID       primitive.ObjectID  `bson:"user_id" json:"user_id"`
	PaymentID    *primitive.ObjectID `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Status       string              `bson:"status" json:"status"`
	TicketUsed   bool                `bson:"ticket_used" json:"ticket_used"`
	QRCode       string              `bson:"qr_code" json:"qr_code"`
	PurchaseDate time.Time           `bson:"purchase_date" json:"purchase_date"`
	RefundDate   *time.Time          `bson:"refund_date" json:"refund_date"`
	RefundReason *string             `bson:"refund_reason" json:"refund_reason"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
}

// CanTerminate classifies why a cancel or refund by userID must be refused.
func (t *Ticket) CanTerminate(userID primitive.ObjectID) error {
	if t.UserID != userID {
		return ErrNotOwner
	}
	if t.Status == TicketStatusCancelled {
		return ErrAlreadyCancelled
	}
	if t.TicketUsed {
		return ErrAlreadyUsed
	}
	return nil
}

// CanCheckIn classifies why a gate verification must be refused.
func (t *Ticket) CanCheckIn() error {
	if t.Status == TicketStatusCancelled {
		return ErrTicketCancelled
	}
	if t.TicketUsed {
		return ErrAlreadyUsed
	}
	return nil
}

// Termination describes the terminal transition shared by cancel and refund.
type Termination struct {
	Refund bool
	Reason string
	At     time.Time
}

type TicketFilter struct {
	EventID *primitive.ObjectID
	UserID  *primitive.ObjectID
	Status  string
	Page    int
	Limit   int
}

type TicketRepo interface {
	// InsertTicket returns ErrAlreadyBooked when a booked ticket exists for the pair.
	InsertTicket(ctx context.Context, ticket *Ticket) error
	GetTicketByID(ctx context.Context, id primitive.ObjectID) (*Ticket, error)
	FindTicketByPayment(ctx context.Context, paymentID primitive.ObjectID) (*Ticket, error)
	// TerminateTicket moves a booked, unused ticket owned by userID to cancelled.
	TerminateTicket(ctx context.Context, id, userID primitive.ObjectID, term Termination) (*Ticket, error)
	// MarkTicketUsed consumes a booked, unused ticket.
	MarkTicketUsed(ctx context.Context, id primitive.ObjectID) (*Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]*Ticket, int64, error)
	CountTickets(ctx context.Context, filter TicketFilter) (int64, error)
}

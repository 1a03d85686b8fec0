package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	PaymentMethodStripe   = "stripe"
	PaymentMethodJazzCash = "jazzCash"
)

func IsPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type Payment struct {
	ID                     primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID                 primitive.ObjectID  `bson:"user_id" json:"user_id"`
	EventID                primitive.ObjectID  `bson:"event_id" json:"event_id"`
	TicketID               *primitive.ObjectID `bson:"ticket_id" json:"ticket_id"`
	Amount                 float64             `bson:"amount" json:"amount"`
	Currency               string              `bson:"currency" json:"currency"`
	PaymentMethod          string              `bson:"payment_method" json:"payment_method"`
	PaymentStatus          string              `bson:"payment_status" json:"payment_status"`
	TransactionID          string              `bson:"transaction_id" json:"transaction_id"`
	ProviderSessionID      *string             `bson:"provider_session_id,omitempty" json:"provider_session_id,omitempty"`
	RedirectURL            string              `bson:"redirect_url" json:"redirect_url,omitempty"`
	IssuingAt              *time.Time          `bson:"issuing_at" json:"-"`
	SeatReserved           bool                `bson:"seat_reserved" json:"-"`
	ReconciliationRequired bool                `bson:"reconciliation_required" json:"reconciliation_required"`
	ReconciliationReason   string              `bson:"reconciliation_reason,omitempty" json:"reconciliation_reason,omitempty"`
	CreatedAt              time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time           `bson:"updated_at" json:"updated_at"`
}

func (p *Payment) BeforeCreate() {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = PaymentStatusPending
	}
	p.TicketID = nil
	p.IssuingAt = nil
	p.SeatReserved = false
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
}

type PaymentRepo interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPaymentByID(ctx context.Context, id primitive.ObjectID) (*Payment, error)
	// FindPaymentByCorrelation matches the transaction id or the provider session id.
	FindPaymentByCorrelation(ctx context.Context, key string) (*Payment, error)
	// UpdatePaymentStatus records a non-terminal report; completed payments are left alone.
	UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, status string) (*Payment, error)
	// ClaimIssuance marks the payment completed and takes the issuance claim while
	// ticket_id is null and no live claim exists. Claims older than staleBefore are free.
	ClaimIssuance(ctx context.Context, id primitive.ObjectID, now, staleBefore time.Time) (*Payment, error)
	// LinkTicket sets ticket_id once and drops the claim.
	LinkTicket(ctx context.Context, id, ticketID primitive.ObjectID) (*Payment, error)
	ReleaseClaim(ctx context.Context, id primitive.ObjectID) error
	// MarkSeatReserved records whether the claim holder owns a reserved seat, so a
	// takeover of a stale claim reuses it instead of reserving another.
	MarkSeatReserved(ctx context.Context, id primitive.ObjectID, reserved bool) error
	FlagReconciliation(ctx context.Context, id primitive.ObjectID, reason string) (*Payment, error)
	ListReconciliation(ctx context.Context, page, limit int) ([]*Payment, int64, error)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/gateway"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/monitoring"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Locker serializes confirmations of one payment across instances.
type Locker interface {
	Acquire(ctx context.Context, name string) (string, bool, error)
	Release(ctx context.Context, name, token string) error
}

type PaymentConfig struct {
	GatewayTimeout time.Duration
	ClaimTTL       time.Duration
}

// PaymentService drives payments from pending to a terminal state and issues
// the ticket for a completed payment exactly once.
type PaymentService struct {
	payments models.PaymentRepo
	events   models.EventRepo
	tickets  models.TicketRepo
	ledger   *InventoryLedger
	registry *TicketRegistry
	gateways *gateway.Registry
	locker   Locker
	monitor  *monitoring.Monitor
	logger   *slog.Logger
	cfg      PaymentConfig
	now      func() time.Time
}

func NewPaymentService(
	payments models.PaymentRepo,
	events models.EventRepo,
	tickets models.TicketRepo,
	ledger *InventoryLedger,
	registry *TicketRegistry,
	gateways *gateway.Registry,
	monitor *monitoring.Monitor,
	logger *slog.Logger,
	cfg PaymentConfig,
) *PaymentService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 2 * time.Minute
	}
	return &PaymentService{
		payments: payments,
		events:   events,
		tickets:  tickets,
		ledger:   ledger,
		registry: registry,
		gateways: gateways,
		monitor:  monitor,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithLocker adds a distributed lock around confirmations. The atomic claim
// stays authoritative; the lock only keeps concurrent callers from piling up.
func (s *PaymentService) WithLocker(l Locker) *PaymentService {
	s.locker = l
	return s
}

// Initiate opens a checkout with the provider and records the pending payment.
// Nothing is written when the provider call fails.
func (s *PaymentService) Initiate(ctx context.Context, eventID primitive.ObjectID, user *models.User, provider string) (*models.Payment, *gateway.Checkout, error) {
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, nil, models.ErrInvalidEvent
		}
		return nil, nil, err
	}
	if event.IsFree() {
		return nil, nil, models.ErrInvalidEvent
	}
	if err := event.CanReserve(); err != nil {
		return nil, nil, err
	}

	amount := decimal.NewFromFloat(*event.Price)
	req := &gateway.CheckoutRequest{
		TransactionID: uuid.NewString(),
		EventID:       event.ID.Hex(),
		UserID:        user.ID.Hex(),
		EventTitle:    event.Title,
		CustomerEmail: user.Email,
		Amount:        amount,
		Currency:      event.Currency,
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	checkout, err := gw.CreateCheckout(gctx, req)
	s.monitor.TrackGatewayCall(provider, "checkout", time.Since(start))
	if err != nil {
		if _, ok := models.AsAppError(err); ok {
			return nil, nil, err
		}
		return nil, nil, models.Upstream("create checkout", err)
	}

	payment := &models.Payment{
		UserID:        user.ID,
		EventID:       event.ID,
		Amount:        amount.InexactFloat64(),
		Currency:      event.Currency,
		PaymentMethod: provider,
		TransactionID: req.TransactionID,
		RedirectURL:   checkout.RedirectURL,
	}
	if checkout.SessionID != "" {
		sessionID := checkout.SessionID
		payment.ProviderSessionID = &sessionID
	}
	payment.BeforeCreate()

	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.logger.Info("Payment initiated",
		"payment_id", payment.ID.Hex(),
		"transaction_id", payment.TransactionID,
		"provider", provider,
		"event_id", event.ID.Hex(),
	)
	return payment, checkout, nil
}

// Settle asks the provider adapter to resolve a report into a settlement.
func (s *PaymentService) Settle(ctx context.Context, provider string, report gateway.Report) (*gateway.Settlement, error) {
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	settlement, err := gw.Settle(gctx, report)
	s.monitor.TrackGatewayCall(provider, "settle", time.Since(start))
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// ConfirmResult is the outcome of a confirmation. Issued is true only for the
// call that linked the ticket to the payment.
type ConfirmResult struct {
	Payment *models.Payment
	Ticket  *models.Ticket
	Event   *models.Event
	Issued  bool
}

// Confirm records a provider-reported status. A completed status issues the
// ticket at most once no matter how often or how concurrently it is reported.
func (s *PaymentService) Confirm(ctx context.Context, correlationKey, status string) (*ConfirmResult, error) {
	if !models.IsPaymentStatus(status) {
		return nil, models.Invalid("unknown payment status " + status)
	}

	payment, err := s.payments.FindPaymentByCorrelation(ctx, correlationKey)
	if err != nil {
		return nil, err
	}

	if status != models.PaymentStatusCompleted {
		return s.recordStatus(ctx, payment, status)
	}
	if payment.TicketID != nil {
		s.monitor.TrackPaymentConfirmation(payment.PaymentMethod, "duplicate")
		return s.current(ctx, payment)
	}
	if payment.ReconciliationRequired {
		return nil, s.reconciliationError(payment.ReconciliationReason)
	}

	if s.locker != nil {
		name := "payment:confirm:" + payment.ID.Hex()
		token, ok, err := s.locker.Acquire(ctx, name)
		switch {
		case err != nil:
			s.logger.Warn("Confirm lock unavailable, relying on issuance claim", "payment_id", payment.ID.Hex(), "error", err)
		case !ok:
			s.monitor.TrackPaymentConfirmation(payment.PaymentMethod, "in_flight")
			return &ConfirmResult{Payment: payment}, nil
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), name, token); err != nil {
					s.logger.Warn("Failed to release confirm lock", "payment_id", payment.ID.Hex(), "error", err)
				}
			}()
		}
	}

	now := s.now()
	claimed, err := s.payments.ClaimIssuance(ctx, payment.ID, now, now.Add(-s.cfg.ClaimTTL))
	if err != nil {
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to claim payment: %w", err)
		}
		latest, err := s.payments.GetPaymentByID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		if latest.ReconciliationRequired {
			return nil, s.reconciliationError(latest.ReconciliationReason)
		}
		s.monitor.TrackPaymentConfirmation(payment.PaymentMethod, "duplicate")
		return s.current(ctx, latest)
	}

	return s.issue(ctx, claimed)
}

func (s *PaymentService) recordStatus(ctx context.Context, payment *models.Payment, status string) (*ConfirmResult, error) {
	updated, err := s.payments.UpdatePaymentStatus(ctx, payment.ID, status)
	if err != nil {
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to update payment status: %w", err)
		}
		latest, err := s.payments.GetPaymentByID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		return s.current(ctx, latest)
	}
	s.monitor.TrackPaymentConfirmation(payment.PaymentMethod, status)
	return &ConfirmResult{Payment: updated}, nil
}

// issue runs with the claim held. Every exit either links a ticket, flags the
// payment for reconciliation or frees the claim.
func (s *PaymentService) issue(ctx context.Context, payment *models.Payment) (*ConfirmResult, error) {
	log := s.logger.With("payment_id", payment.ID.Hex(), "transaction_id", payment.TransactionID)

	existing, err := s.tickets.FindTicketByPayment(ctx, payment.ID)
	switch {
	case err == nil:
		log.Warn("Linking ticket issued by an interrupted confirmation", "ticket_id", existing.ID.Hex())
		return s.link(ctx, payment, existing, nil)
	case !errors.Is(err, models.ErrTicketNotFound):
		s.releaseClaim(ctx, payment)
		return nil, fmt.Errorf("failed to look up ticket for payment: %w", err)
	}

	var event *models.Event
	if payment.SeatReserved {
		log.Warn("Reusing seat reserved by an interrupted confirmation", "event_id", payment.EventID.Hex())
	} else {
		event, err = s.ledger.Reserve(ctx, payment.EventID)
		if err != nil {
			if unissuable(err) {
				return nil, s.flag(ctx, payment, err)
			}
			s.releaseClaim(ctx, payment)
			return nil, err
		}
		if err := s.payments.MarkSeatReserved(ctx, payment.ID, true); err != nil {
			log.Error("Failed to record seat reservation", "event_id", payment.EventID.Hex(), "error", err)
		}
	}

	ticket, err := s.registry.Issue(ctx, payment.EventID, payment.UserID, &payment.ID)
	if err != nil {
		if rerr := s.ledger.Release(ctx, payment.EventID); rerr != nil {
			log.Error("Failed to release seat after issuance failure", "event_id", payment.EventID.Hex(), "error", rerr)
		} else if merr := s.payments.MarkSeatReserved(ctx, payment.ID, false); merr != nil {
			log.Error("Failed to clear seat reservation", "event_id", payment.EventID.Hex(), "error", merr)
		}
		if errors.Is(err, models.ErrAlreadyBooked) || unissuable(err) {
			return nil, s.flag(ctx, payment, err)
		}
		s.releaseClaim(ctx, payment)
		return nil, err
	}

	return s.link(ctx, payment, ticket, event)
}

// unissuable reports outcomes that retrying the confirmation cannot fix.
func unissuable(err error) bool {
	return errors.Is(err, models.ErrSoldOut) || errors.Is(err, models.ErrEventCancelled) || errors.Is(err, models.ErrEventNotFound)
}

func (s *PaymentService) link(ctx context.Context, payment *models.Payment, ticket *models.Ticket, event *models.Event) (*ConfirmResult, error) {
	linked, err := s.payments.LinkTicket(ctx, payment.ID, ticket.ID)
	if err != nil {
		if errors.Is(err, models.ErrNoMatch) {
			latest, err := s.payments.GetPaymentByID(ctx, payment.ID)
			if err != nil {
				return nil, err
			}
			return s.current(ctx, latest)
		}
		s.releaseClaim(ctx, payment)
		return nil, fmt.Errorf("failed to link ticket to payment: %w", err)
	}

	if event == nil {
		if event, err = s.events.GetEventByID(ctx, ticket.EventID); err != nil {
			s.logger.Warn("Ticket linked but event reload failed", "ticket_id", ticket.ID.Hex(), "error", err)
		}
	}

	s.monitor.TrackPaymentConfirmation(payment.PaymentMethod, "issued")
	s.logger.Info("Ticket issued for payment",
		"payment_id", linked.ID.Hex(),
		"ticket_id", ticket.ID.Hex(),
		"event_id", ticket.EventID.Hex(),
	)
	return &ConfirmResult{Payment: linked, Ticket: ticket, Event: event, Issued: true}, nil
}

// flag parks a completed payment that cannot get a ticket. It keeps the
// completed status and a null ticket_id for manual reconciliation.
func (s *PaymentService) flag(ctx context.Context, payment *models.Payment, cause error) error {
	reason := cause.Error()
	code := "unknown"
	if appErr, ok := models.AsAppError(cause); ok {
		code = appErr.Code
	}

	if _, err := s.payments.FlagReconciliation(ctx, payment.ID, reason); err != nil && !errors.Is(err, models.ErrNoMatch) {
		s.logger.Error("Failed to flag payment for reconciliation", "payment_id", payment.ID.Hex(), "error", err)
	}

	s.logger.Error("Payment requires reconciliation",
		"payment_id", payment.ID.Hex(),
		"transaction_id", payment.TransactionID,
		"event_id", payment.EventID.Hex(),
		"user_id", payment.UserID.Hex(),
		"amount", payment.Amount,
		"currency", payment.Currency,
		"reason", reason,
	)
	s.monitor.TrackReconciliation(payment.PaymentMethod, code)
	return s.reconciliationError(reason)
}

func (s *PaymentService) reconciliationError(reason string) error {
	if reason == "" {
		return models.ErrReconciliationRequired
	}
	return fmt.Errorf("%w: %s", models.ErrReconciliationRequired, reason)
}

func (s *PaymentService) releaseClaim(ctx context.Context, payment *models.Payment) {
	if err := s.payments.ReleaseClaim(context.WithoutCancel(ctx), payment.ID); err != nil {
		s.logger.Error("Failed to release issuance claim", "payment_id", payment.ID.Hex(), "error", err)
	}
}

// current reports the payment as it stands, with its ticket when one is linked.
func (s *PaymentService) current(ctx context.Context, payment *models.Payment) (*ConfirmResult, error) {
	res := &ConfirmResult{Payment: payment}
	if payment.TicketID == nil {
		return res, nil
	}
	ticket, err := s.tickets.GetTicketByID(ctx, *payment.TicketID)
	if err != nil {
		return nil, err
	}
	res.Ticket = ticket
	return res, nil
}

// Get returns a payment to its owner or an admin.
func (s *PaymentService) Get(ctx context.Context, id primitive.ObjectID, viewer Viewer) (*models.Payment, error) {
	payment, err := s.payments.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin && payment.UserID != viewer.UserID {
		return nil, models.ErrNotOwner
	}
	return payment, nil
}

// Authorize checks that viewer owns the payment behind correlationKey before
// anything is settled on their behalf.
func (s *PaymentService) Authorize(ctx context.Context, correlationKey string, viewer Viewer) error {
	if strings.TrimSpace(correlationKey) == "" {
		return models.Invalid("session id is required")
	}
	payment, err := s.payments.FindPaymentByCorrelation(ctx, correlationKey)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin && payment.UserID != viewer.UserID {
		return models.ErrNotOwner
	}
	return nil
}

func (s *PaymentService) ListReconciliation(ctx context.Context, page, limit int) ([]*models.Payment, int64, error) {
	return s.payments.ListReconciliation(ctx, page, limit)
}

// ReconciliationBacklog counts payments waiting for manual reconciliation.
func (s *PaymentService) ReconciliationBacklog(ctx context.Context) (int64, error) {
	_, total, err := s.payments.ListReconciliation(ctx, 1, 1)
	return total, err
}

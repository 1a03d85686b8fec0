package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway uses Stripe hosted checkout. Confirmation pulls the session
// and reads its payment status.
type StripeGateway struct {
	sessions    checkoutSessions
	frontendURL string
}

func NewStripeGateway(secretKey, frontendURL string) *StripeGateway {
	return &StripeGateway{
		sessions:    session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (g *StripeGateway) Provider() string {
	return models.PaymentMethodStripe
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID:  stripe.String(req.TransactionID),
		SuccessURL:         stripe.String(g.frontendURL + "/ticket/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(g.frontendURL + "/ticket/cancel"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.EventTitle),
					},
					UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("transaction_id", req.TransactionID)
	params.AddMetadata("event_id", req.EventID)
	params.AddMetadata("user_id", req.UserID)

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, models.Upstream("stripe create checkout session", err)
	}
	if s.URL == "" {
		return nil, models.Upstream("stripe create checkout session", errors.New("session has no url"))
	}
	return &Checkout{RedirectURL: s.URL, SessionID: s.ID}, nil
}

func (g *StripeGateway) Settle(ctx context.Context, report Report) (*Settlement, error) {
	if report.SessionID == "" {
		return nil, models.Invalid("session_id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.sessions.Get(report.SessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, fmt.Errorf("%w: unknown checkout session", models.ErrPaymentNotFound)
		}
		return nil, models.Upstream("stripe retrieve checkout session", err)
	}

	return &Settlement{
		Provider:      g.Provider(),
		CorrelationID: s.ID,
		Status:        stripeStatus(s),
		ProviderRef:   s.ClientReferenceID,
	}, nil
}

func stripeStatus(s *stripe.CheckoutSession) string {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return models.PaymentStatusCompleted
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

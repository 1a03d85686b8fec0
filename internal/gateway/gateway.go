package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/shopspring/decimal"
)

// CheckoutRequest describes one ticket purchase handed to a provider.
type CheckoutRequest struct {
	TransactionID string
	EventID       string
	UserID        string
	EventTitle    string
	CustomerEmail string
	Amount        decimal.Decimal
	Currency      string
}

// Checkout is where the client must be sent to pay.
type Checkout struct {
	RedirectURL string            `json:"redirect_url"`
	SessionID   string            `json:"session_id,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Report is what a provider hands back: a session id for pull adapters or
// the signed callback fields for push adapters.
type Report struct {
	SessionID string
	Fields    map[string]string
}

// Settlement is a provider report resolved to a payment outcome.
type Settlement struct {
	Provider      string
	CorrelationID string
	Status        string
	ProviderRef   string
}

// Gateway is a payment provider adapter.
type Gateway interface {
	Provider() string
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error)
	Settle(ctx context.Context, report Report) (*Settlement, error)
}

// Registry selects an adapter by provider name.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g Gateway) {
	r.gateways[g.Provider()] = g
}

func (r *Registry) Get(provider string) (Gateway, error) {
	g, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedProvider, provider)
	}
	return g, nil
}

// Providers returns the registered provider names in a stable order.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MinorUnits converts an amount to the provider's smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

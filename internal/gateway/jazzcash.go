package gateway

import (
	"context"
	"crypto/hmac"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
)

const (
	jazzCashVersion      = "1.1"
	jazzCashLanguage     = "EN"
	jazzCashTimeLayout   = "20060102150405"
	jazzCashExpiry       = 24 * time.Hour
	jazzCashHashField    = "pp_SecureHash"
	jazzCashSuccessCode  = "000"
	maxDescriptionLength = 100
)

// Response codes that mean the customer has not finished paying yet.
var jazzCashPendingCodes = map[string]bool{
	"124": true,
	"157": true,
}

type JazzCashConfig struct {
	MerchantID    string
	Password      string
	IntegritySalt string
	CheckoutURL   string
	ReturnURL     string
	Currency      string
}

// JazzCashGateway redirects to the JazzCash hosted page. Confirmation is
// pushed back as signed pp_* fields by the return URL, the IPN, or PubNub.
type JazzCashGateway struct {
	cfg JazzCashConfig
	now func() time.Time
}

func NewJazzCashGateway(cfg JazzCashConfig) *JazzCashGateway {
	return &JazzCashGateway{cfg: cfg, now: time.Now}
}

func (g *JazzCashGateway) Provider() string {
	return models.PaymentMethodJazzCash
}

func (g *JazzCashGateway) CreateCheckout(_ context.Context, req *CheckoutRequest) (*Checkout, error) {
	if g.cfg.CheckoutURL == "" {
		return nil, models.Upstream("jazzcash checkout", fmt.Errorf("checkout url is not configured"))
	}

	now := g.now()
	fields := map[string]string{
		"pp_Version":           jazzCashVersion,
		"pp_TxnType":           "",
		"pp_Language":          jazzCashLanguage,
		"pp_MerchantID":        g.cfg.MerchantID,
		"pp_Password":          g.cfg.Password,
		"pp_TxnRefNo":          req.TransactionID,
		"pp_Amount":            strconv.FormatInt(MinorUnits(req.Amount), 10),
		"pp_TxnCurrency":       strings.ToUpper(g.currency(req.Currency)),
		"pp_TxnDateTime":       now.Format(jazzCashTimeLayout),
		"pp_TxnExpiryDateTime": now.Add(jazzCashExpiry).Format(jazzCashTimeLayout),
		"pp_BillReference":     "ev" + req.EventID,
		"pp_Description":       truncate(req.EventTitle, maxDescriptionLength),
		"pp_ReturnURL":         g.cfg.ReturnURL,
		"ppmpf_1":              req.UserID,
	}
	fields[jazzCashHashField] = g.Sign(fields)

	query := url.Values{}
	for k, v := range fields {
		query.Set(k, v)
	}

	return &Checkout{
		RedirectURL: g.cfg.CheckoutURL + "?" + query.Encode(),
		Fields:      fields,
	}, nil
}

func (g *JazzCashGateway) Settle(_ context.Context, report Report) (*Settlement, error) {
	fields := report.Fields
	if !g.Verify(fields) {
		return nil, models.ErrInvalidSignature
	}

	ref := fields["pp_TxnRefNo"]
	if ref == "" {
		return nil, models.Invalid("pp_TxnRefNo is required")
	}

	return &Settlement{
		Provider:      g.Provider(),
		CorrelationID: ref,
		Status:        jazzCashStatus(fields["pp_ResponseCode"]),
		ProviderRef:   fields["pp_RetreivalReferenceNo"],
	}, nil
}

// Sign computes pp_SecureHash: HMAC-SHA256 keyed by the integrity salt over the
// salt and the non-empty pp fields ordered by name, joined with '&'.
func (g *JazzCashGateway) Sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == jazzCashHashField || v == "" || !strings.HasPrefix(k, "pp") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, g.cfg.IntegritySalt)
	for _, k := range keys {
		parts = append(parts, fields[k])
	}

	message := strings.Join(parts, "&")
	return strings.ToUpper(helpers.Hmac256([]byte(message), []byte(g.cfg.IntegritySalt)))
}

func (g *JazzCashGateway) Verify(fields map[string]string) bool {
	got := strings.ToUpper(fields[jazzCashHashField])
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(got), []byte(g.Sign(fields)))
}

func (g *JazzCashGateway) currency(requested string) string {
	if g.cfg.Currency != "" {
		return g.cfg.Currency
	}
	return requested
}

func jazzCashStatus(code string) string {
	switch {
	case code == jazzCashSuccessCode:
		return models.PaymentStatusCompleted
	case jazzCashPendingCodes[code]:
		return models.PaymentStatusPending
	default:
		return models.PaymentStatusFailed
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

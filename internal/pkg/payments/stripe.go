package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/internal/pkg/env"
)

// EventTypeCheckoutCompleted is the only processor event that grants an
// entitlement. Expired sessions are logged as cancelled attempts; everything
// else is acknowledged and ignored.
const (
	EventTypeCheckoutCompleted = "checkout.session.completed"
	EventTypeCheckoutExpired   = "checkout.session.expired"
)

// Metadata keys attached to the hosted session at creation time and read
// back by the webhook handler. They are the only link between the processor
// session and the local purchase.
const (
	metaUserID      = "userId"
	metaProductID   = "productId"
	metaProductType = "productType"
)

var ErrMalformedMetadata = errors.New("payments: session metadata missing or malformed")

// SessionRequest describes the hosted payment session to create.
type SessionRequest struct {
	UserID      uint
	UserEmail   string
	ProductID   uint
	ProductType models.ProductType
	ProductName string
	Price       int64 // smallest currency unit
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Session is the processor-owned checkout resource the buyer is redirected to.
type Session struct {
	ID  string
	URL string
}

// CompletedCheckout carries the purchase facts extracted from a completed
// session event.
type CompletedCheckout struct {
	EventID         string
	SessionID       string
	UserID          uint
	ProductID       uint
	ProductType     models.ProductType
	AmountTotal     int64
	Currency        string
	PaymentIntentID string
}

// Gateway abstracts the payment processor so the checkout service can be
// exercised without network access.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway configures the global Stripe key and returns a gateway.
func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

// NewStripeGatewayFromEnv builds a gateway from STRIPE_SECRET_KEY and
// STRIPE_WEBHOOK_SECRET.
func NewStripeGatewayFromEnv() *StripeGateway {
	return NewStripeGateway(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	)
}

// CreateCheckoutSession creates a hosted one-time payment session carrying
// the purchase identity in its metadata.
func (g *StripeGateway) CreateCheckoutSession(_ context.Context, req SessionRequest) (*Session, error) {
	currency := req.Currency
	if currency == "" {
		currency = "eur"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(req.Price),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
			},
		},
	}
	if req.UserEmail != "" {
		params.CustomerEmail = stripe.String(req.UserEmail)
	}
	params.AddMetadata(metaUserID, strconv.FormatUint(uint64(req.UserID), 10))
	params.AddMetadata(metaProductID, strconv.FormatUint(uint64(req.ProductID), 10))
	params.AddMetadata(metaProductType, string(req.ProductType))

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("payments: create stripe checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the shared secret
// and parses the event envelope. This is the sole authentication for the
// webhook endpoint.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("payments: webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// ParseCompletedCheckout extracts the purchase facts from a completed
// session event. Malformed metadata is non-retriable.
func ParseCompletedCheckout(event *stripe.Event) (*CompletedCheckout, error) {
	if string(event.Type) != EventTypeCheckoutCompleted {
		return nil, fmt.Errorf("payments: unexpected event type %q", event.Type)
	}
	return ParseCheckoutSessionEvent(event)
}

// ParseCheckoutSessionEvent extracts the purchase facts from any
// checkout.session.* event payload.
func ParseCheckoutSessionEvent(event *stripe.Event) (*CompletedCheckout, error) {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("payments: parse checkout session payload: %w", err)
	}

	userID, err := parseUintMeta(cs.Metadata, metaUserID)
	if err != nil {
		return nil, err
	}
	productID, err := parseUintMeta(cs.Metadata, metaProductID)
	if err != nil {
		return nil, err
	}
	productType, err := models.ParseProductType(cs.Metadata[metaProductType])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}

	paymentIntentID := ""
	if cs.PaymentIntent != nil {
		paymentIntentID = cs.PaymentIntent.ID
	}

	return &CompletedCheckout{
		EventID:         event.ID,
		SessionID:       cs.ID,
		UserID:          userID,
		ProductID:       productID,
		ProductType:     productType,
		AmountTotal:     cs.AmountTotal,
		Currency:        string(cs.Currency),
		PaymentIntentID: paymentIntentID,
	}, nil
}

func parseUintMeta(meta map[string]string, key string) (uint, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedMetadata, key, raw)
	}
	return uint(v), nil
}

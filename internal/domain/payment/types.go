// internal/domain/payment/types.go
package payment

import (
	"context"
	"fmt"
)

// Provider is the external payment collaborator: it creates hosted checkout
// sessions and reports their payment status.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// LineItem is one billable line of a checkout session
type LineItem struct {
	Name       string
	ImageURL   string
	UnitAmount int64 // minor units
	Quantity   int
}

// CheckoutSessionParams carries everything needed to open a session. SuccessURL
// may contain the {CHECKOUT_SESSION_ID} template the provider substitutes.
type CheckoutSessionParams struct {
	LineItems     []LineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// CheckoutSession is the provider's view of a session. PaymentIntentID is the
// stable payment identifier, distinct from the session id, and only present
// once a payment exists.
type CheckoutSession struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	PaymentStatus   string `json:"payment_status"`
	PaymentIntentID string `json:"payment_intent"`
}

// PaymentStatusPaid is the provider's status for a completed payment
const PaymentStatusPaid = "paid"

// ProviderError represents a failure reported by the payment provider
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error (%d %s): %s", e.StatusCode, e.Type, e.Message)
}

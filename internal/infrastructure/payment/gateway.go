package payment

import (
	"context"

	"github.com/stripe/stripe-go/v76"
)

//go:generate mockgen -source=gateway.go -destination=mock/gateway.go -package=mock

// Gateway is the slice of the payment processor this service talks to.
// CreateRefund reports domain.ErrAlreadyRefunded and
// domain.ErrPaymentIntentNotFound for the processor's own idempotency and
// missing-resource answers; other failures are *domain.UpstreamError.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	CreateRefund(ctx context.Context, paymentIntentID string, idempotencyKey string) (*Refund, error)
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
	Ping(ctx context.Context) error
}

type CheckoutRequest struct {
	Amount      int64
	Currency    string
	ProductName string
	Metadata    map[string]string
}

// Checkout session states as reported by the processor.
const (
	SessionOpen     = "open"
	SessionComplete = "complete"
	SessionExpired  = "expired"

	SessionPaid = "paid"
)

type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
}

type Refund struct {
	ID     string
	Status string
	Amount int64
}

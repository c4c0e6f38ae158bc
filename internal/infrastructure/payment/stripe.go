package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"shopbot/internal/config"
	"shopbot/internal/domain"
)

type stripeGateway struct {
	api           *client.API
	webhookSecret string
	serverURL     string
	tolerance     time.Duration
}

// NewStripeGateway builds a Gateway whose outbound calls are bounded by
// conf.Timeout.
func NewStripeGateway(conf config.Stripe) Gateway {
	httpClient := &http.Client{Timeout: conf.Timeout}
	return &stripeGateway{
		api:           client.New(conf.SecretKey, stripe.NewBackends(httpClient)),
		webhookSecret: conf.WebhookSecret,
		serverURL:     conf.ServerURL,
		tolerance:     webhook.DefaultTolerance,
	}
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.serverURL + "/success"),
		CancelURL:  stripe.String(g.serverURL + "/cancel"),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, translateError(err)
	}
	return toCheckoutSession(sess), nil
}

func (g *stripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, translateError(err)
	}
	return toCheckoutSession(sess), nil
}

func (g *stripeGateway) CreateRefund(ctx context.Context, paymentIntentID string, idempotencyKey string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, translateRefundError(err)
	}
	return &Refund{
		ID:     refund.ID,
		Status: string(refund.Status),
		Amount: refund.Amount,
	}, nil
}

func (g *stripeGateway) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                g.tolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return event, nil
}

func (g *stripeGateway) Ping(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if _, err := g.api.Balance.Get(params); err != nil {
		return translateError(err)
	}
	return nil
}

func toCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	cs := &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.PaymentIntent != nil {
		cs.PaymentIntentID = sess.PaymentIntent.ID
	}
	return cs
}

// translateRefundError maps the refund endpoint's idempotency and
// missing-resource codes onto the domain taxonomy.
func translateRefundError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeChargeAlreadyRefunded:
			return fmt.Errorf("%w: %s", domain.ErrAlreadyRefunded, stripeErr.Msg)
		case stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%w: %s", domain.ErrPaymentIntentNotFound, stripeErr.Msg)
		}
	}
	return translateError(err)
}

func translateError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &domain.UpstreamError{Message: err.Error(), Err: err}
	}

	msg := stripeErr.Msg
	if msg == "" {
		msg = string(stripeErr.Type)
	}
	return &domain.UpstreamError{Code: string(stripeErr.Code), Message: msg, Err: err}
}

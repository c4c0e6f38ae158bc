package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"shopbot/internal/domain"
)

// FakeGateway is an in-memory processor. Refund answers, failures included,
// are replayed by idempotency key the same way the real processor replays
// them, and webhook payloads are signed and verified with a real secret.
type FakeGateway struct {
	mu            sync.RWMutex
	secret        string
	sessions      map[string]*CheckoutSession
	refundsByKey  map[string]refundReply
	refundedByPI  map[string]string
	refundCalls   int
	nextRefundErr error
}

type refundReply struct {
	refund *Refund
	err    error
}

func NewFakeGateway(webhookSecret string) *FakeGateway {
	return &FakeGateway{
		secret:       webhookSecret,
		sessions:     make(map[string]*CheckoutSession),
		refundsByKey: make(map[string]refundReply),
		refundedByPI: make(map[string]string),
	}
}

func (pg *FakeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	id := "cs_test_" + uuid.NewString()
	sess := &CheckoutSession{
		ID:     id,
		URL:    "https://checkout.stripe.test/c/pay/" + id,
		Status: SessionOpen,
	}

	pg.mu.Lock()
	pg.sessions[id] = sess
	pg.mu.Unlock()

	cp := *sess
	return &cp, nil
}

func (pg *FakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()

	sess, ok := pg.sessions[sessionID]
	if !ok {
		return nil, &domain.UpstreamError{Code: string(stripe.ErrorCodeResourceMissing), Message: "No such checkout.session: " + sessionID}
	}
	cp := *sess
	return &cp, nil
}

// CompleteSession simulates the customer paying; it returns the new payment intent id.
func (pg *FakeGateway) CompleteSession(sessionID string) string {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	pi := "pi_test_" + uuid.NewString()
	if sess, ok := pg.sessions[sessionID]; ok {
		sess.Status = SessionComplete
		sess.PaymentStatus = SessionPaid
		sess.PaymentIntentID = pi
	}
	return pi
}

func (pg *FakeGateway) ExpireSession(sessionID string) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if sess, ok := pg.sessions[sessionID]; ok {
		sess.Status = SessionExpired
	}
}

// FailNextRefund makes the next CreateRefund call return err.
func (pg *FakeGateway) FailNextRefund(err error) {
	pg.mu.Lock()
	pg.nextRefundErr = err
	pg.mu.Unlock()
}

func (pg *FakeGateway) RefundCalls() int {
	pg.mu.RLock()
	defer pg.mu.RUnlock()
	return pg.refundCalls
}

func (pg *FakeGateway) CreateRefund(ctx context.Context, paymentIntentID string, idempotencyKey string) (*Refund, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	pg.refundCalls++

	// replay of the same request
	if reply, ok := pg.refundsByKey[idempotencyKey]; ok && idempotencyKey != "" {
		if reply.err != nil {
			return nil, reply.err
		}
		cp := *reply.refund
		return &cp, nil
	}

	r, err := pg.refund(paymentIntentID)
	if idempotencyKey != "" {
		pg.refundsByKey[idempotencyKey] = refundReply{refund: r, err: err}
	}
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (pg *FakeGateway) refund(paymentIntentID string) (*Refund, error) {
	if err := pg.nextRefundErr; err != nil {
		pg.nextRefundErr = nil
		return nil, err
	}
	if !pg.knownIntent(paymentIntentID) {
		return nil, fmt.Errorf("%w: No such payment_intent: '%s'", domain.ErrPaymentIntentNotFound, paymentIntentID)
	}
	if _, done := pg.refundedByPI[paymentIntentID]; done {
		return nil, fmt.Errorf("%w: Charge has already been refunded.", domain.ErrAlreadyRefunded)
	}

	r := &Refund{ID: "re_test_" + uuid.NewString(), Status: "succeeded"}
	pg.refundedByPI[paymentIntentID] = r.ID
	return r, nil
}

func (pg *FakeGateway) knownIntent(pi string) bool {
	for _, sess := range pg.sessions {
		if sess.PaymentIntentID == pi {
			return true
		}
	}
	return false
}

func (pg *FakeGateway) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, pg.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return event, nil
}

// Sign returns a Stripe-Signature header for payload.
func (pg *FakeGateway) Sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    pg.secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func (pg *FakeGateway) Ping(ctx context.Context) error {
	return ctx.Err()
}

package webhook

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopbot/internal/domain"
)

const (
	expiredReason  = "Checkout session expired"
	fallbackReason = "Payment processing error"
)

// Lifecycle is the subset of the order service the router drives.
type Lifecycle interface {
	ApplyPaymentSuccess(ctx context.Context, checkoutSessionID string, paymentIntentID string) domain.TransitionResult
	ApplyPaymentFailure(ctx context.Context, ref domain.OrderRef, reason string) domain.TransitionResult
}

type RefundProcessor interface {
	ProcessRefundWebhook(ctx context.Context, paymentIntentID string, refundID string) error
}

// Router sends each classified event to exactly one lifecycle operation.
type Router struct {
	lifecycle Lifecycle
	refunds   RefundProcessor
	logger    *zap.Logger
}

func NewRouter(lifecycle Lifecycle, refunds RefundProcessor, logger *zap.Logger) *Router {
	return &Router{
		lifecycle: lifecycle,
		refunds:   refunds,
		logger:    logger,
	}
}

// Dispatch returns an error only for internal faults; not found, duplicate
// and out-of-order events are successful no-ops.
func (r *Router) Dispatch(ctx context.Context, ev Event) error {
	log := r.logger.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	var res domain.TransitionResult
	switch ev.Kind {
	case CheckoutCompleted:
		res = r.lifecycle.ApplyPaymentSuccess(ctx, ev.Session, ev.PaymentIntent)

	case CheckoutExpired:
		res = r.lifecycle.ApplyPaymentFailure(ctx, domain.ByCheckoutSession(ev.Session), expiredReason)

	case PaymentFailed:
		reason := ev.Reason
		if reason == "" {
			reason = fallbackReason
		}
		res = r.lifecycle.ApplyPaymentFailure(ctx, domain.ByPaymentIntent(ev.PaymentIntent), reason)

	case ChargeRefunded:
		if ev.RefundID == "" || ev.PaymentIntent == "" {
			log.Warn("refunded charge without refund id, skipping",
				zap.String("payment_intent_id", ev.PaymentIntent))
			return nil
		}
		if err := r.refunds.ProcessRefundWebhook(ctx, ev.PaymentIntent, ev.RefundID); err != nil {
			return fmt.Errorf("process refund webhook: %w", err)
		}
		return nil

	default:
		log.Debug("unhandled event type")
		return nil
	}

	log.Info("event processed", zap.String("kind", ev.Kind.String()), zap.String("outcome", string(res.Outcome)))
	if res.Outcome == domain.OutcomeError {
		return res.Err
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopbot/internal/domain"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/repo"
)

// RefundService issues real-money refunds and reconciles refunds the
// processor reports on its own.
type RefundService interface {
	// CreateRefund never returns an error: every failure is tagged in the result.
	CreateRefund(ctx context.Context, orderID int64) domain.RefundResult
	// ProcessRefundWebhook returns an error only for internal faults.
	ProcessRefundWebhook(ctx context.Context, paymentIntentID string, refundID string) error
}

type refundService struct {
	orderRepo repo.OrderRepo
	orders    OrderService
	gateway   payment.Gateway
	logger    *zap.Logger
}

func NewRefundService(orderRepo repo.OrderRepo, orders OrderService, gateway payment.Gateway, logger *zap.Logger) RefundService {
	return &refundService{
		orderRepo: orderRepo,
		orders:    orders,
		gateway:   gateway,
		logger:    logger,
	}
}

// refundIdempotencyKey makes a retried refund for the same order replay the
// processor's first answer instead of refunding twice. The processor keeps
// that answer for 24 hours, failures included.
func refundIdempotencyKey(order *domain.Order) string {
	return "refund-" + order.ExternalID
}

func (s *refundService) CreateRefund(ctx context.Context, orderID int64) domain.RefundResult {
	log := s.logger.With(zap.Int64("order_id", orderID))

	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		log.Error("unexpected error loading order", zap.Error(err))
		return domain.RefundFailed(fmt.Errorf("load order %d: %w", orderID, err))
	}
	if order == nil {
		log.Error("order not found")
		return domain.RefundFailed(domain.ErrOrderNotFound)
	}
	log = log.With(zap.String("external_id", order.ExternalID), zap.String("payment_intent_id", order.PaymentIntentID))

	if order.Status == domain.OrderRefunded {
		log.Warn("order already refunded", zap.String("refund_id", order.RefundID))
		return domain.RefundFailed(domain.ErrAlreadyRefunded)
	}
	if !order.HasPaymentIntent() {
		log.Error("payment intent id missing")
		return domain.RefundFailed(domain.ErrMissingPaymentIntent)
	}

	refund, err := s.gateway.CreateRefund(ctx, order.PaymentIntentID, refundIdempotencyKey(order))
	if err != nil {
		log.Error("processor refund creation failed",
			zap.String("kind", string(domain.KindOf(err))), zap.Error(err))
		return domain.RefundFailed(err)
	}
	log = log.With(zap.String("refund_id", refund.ID))
	log.Info("processor refund created")

	res := s.orders.ApplyRefund(ctx, order, refund.ID)
	switch res.Outcome {
	case domain.OutcomeApplied:
		return domain.RefundSucceeded(refund.ID)
	case domain.OutcomeAlreadyApplied:
		// the charge.refunded webhook got there first
		log.Info("refund already recorded concurrently")
		return domain.RefundSucceeded(refund.ID)
	case domain.OutcomeError:
		// money moved but the store did not record it; the refund webhook reconciles later
		log.Error("refund created but order not updated", zap.Error(res.Err))
		result := domain.RefundFailed(res.Err)
		result.RefundID = refund.ID
		return result
	default:
		status := domain.OrderStatus("unknown")
		if res.Order != nil {
			status = res.Order.Status
		}
		log.Error("refund created for order outside paid state", zap.String("status", string(status)))
		result := domain.RefundFailed(fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, status))
		result.RefundID = refund.ID
		return result
	}
}

func (s *refundService) ProcessRefundWebhook(ctx context.Context, paymentIntentID string, refundID string) error {
	log := s.logger.With(zap.String("payment_intent_id", paymentIntentID), zap.String("refund_id", refundID))

	order, err := s.orderRepo.FindByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		log.Error("error processing refund webhook", zap.Error(err))
		return fmt.Errorf("find order by payment intent: %w", err)
	}
	if order == nil {
		log.Warn("order not found for refund webhook")
		return nil
	}
	if order.Status == domain.OrderRefunded {
		log.Info("order already refunded, skipping webhook processing",
			zap.Int64("order_id", order.ID), zap.String("existing_refund_id", order.RefundID))
		return nil
	}

	res := s.orders.ApplyRefund(ctx, order, refundID)
	if res.Outcome == domain.OutcomeError {
		return res.Err
	}
	if res.Outcome == domain.OutcomeIgnored {
		log.Warn("refund webhook for order that cannot be refunded",
			zap.Int64("order_id", order.ID), zap.String("status", string(order.Status)))
	}
	return nil
}

// IsRefundFinal reports whether retrying the refund cannot change its outcome.
// Processor failures are final because a retry sends the same idempotency
// key and gets the cached answer back. Only local faults are worth retrying:
// either the processor was never called or its success is replayed.
func IsRefundFinal(res domain.RefundResult) bool {
	return res.Success || res.Kind != domain.KindInternal
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopbot/internal/domain"
	"shopbot/internal/repo"
)

const defaultFailureReason = "Payment processing error"

// OrderService is the only writer of order status. Each Apply* call is safe
// to repeat: a transition that was already made, or that lost a race with a
// concurrent caller, reports a no-op and sends nothing.
type OrderService interface {
	ApplyPaymentSuccess(ctx context.Context, checkoutSessionID string, paymentIntentID string) domain.TransitionResult
	ApplyPaymentFailure(ctx context.Context, ref domain.OrderRef, reason string) domain.TransitionResult
	ApplyRefund(ctx context.Context, order *domain.Order, refundID string) domain.TransitionResult
	Lookup(ctx context.Context, identifier string) (*domain.Order, error)
}

type orderService struct {
	orderRepo repo.OrderRepo
	notifier  NotificationService
	logger    *zap.Logger
}

func NewOrderService(orderRepo repo.OrderRepo, notifier NotificationService, logger *zap.Logger) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		notifier:  notifier,
		logger:    logger,
	}
}

func orderFields(order *domain.Order) []zap.Field {
	return []zap.Field{
		zap.Int64("order_id", order.ID),
		zap.String("external_id", order.ExternalID),
		zap.Int64("chat_id", order.ChatID),
		zap.String("status", string(order.Status)),
	}
}

func failed(err error) domain.TransitionResult {
	return domain.TransitionResult{Outcome: domain.OutcomeError, Err: err}
}

func (s *orderService) ApplyPaymentSuccess(ctx context.Context, checkoutSessionID string, paymentIntentID string) domain.TransitionResult {
	log := s.logger.With(
		zap.String("checkout_session_id", checkoutSessionID),
		zap.String("payment_intent_id", paymentIntentID),
	)

	order, err := s.orderRepo.FindByCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		log.Error("failed to load order", zap.Error(err))
		return failed(fmt.Errorf("find order by checkout session: %w", err))
	}
	if order == nil {
		log.Warn("order not found for checkout session")
		return domain.TransitionResult{Outcome: domain.OutcomeNotFound}
	}
	log = log.With(orderFields(order)...)

	if order.Status == domain.OrderPaid {
		log.Info("order already marked as paid, skipping update")
		return domain.TransitionResult{Outcome: domain.OutcomeAlreadyApplied, Order: order}
	}
	if !order.Status.CanTransitionTo(domain.OrderPaid) {
		log.Warn("ignoring payment success for order in terminal state")
		return domain.TransitionResult{Outcome: domain.OutcomeIgnored, Order: order}
	}

	won, err := s.orderRepo.MarkPaid(ctx, order.ID, paymentIntentID)
	if err != nil {
		log.Error("failed to mark order as paid", zap.Error(err))
		return failed(fmt.Errorf("mark order %d paid: %w", order.ID, err))
	}
	if !won {
		return s.settleLostRace(ctx, log, order.ID, domain.OrderPaid)
	}

	order.Status = domain.OrderPaid
	if paymentIntentID != "" {
		order.PaymentIntentID = paymentIntentID
	}
	order.UpdatedAt = time.Now()
	log.Info("order updated to paid status")

	notified := s.notifier.PaymentSucceeded(ctx, order)
	if !notified {
		log.Warn("payment notification delivery failed but order processed")
	}
	return domain.TransitionResult{Outcome: domain.OutcomeApplied, Order: order, Notified: notified}
}

func (s *orderService) ApplyPaymentFailure(ctx context.Context, ref domain.OrderRef, reason string) domain.TransitionResult {
	if reason == "" {
		reason = defaultFailureReason
	}
	log := s.logger.With(zap.String(ref.Kind.String()+"_id", ref.Value), zap.String("reason", reason))

	order, err := s.findByRef(ctx, ref)
	if err != nil {
		log.Error("failed to load order", zap.Error(err))
		return failed(fmt.Errorf("find order by %s: %w", ref.Kind, err))
	}
	if order == nil {
		log.Warn("order not found for failed payment")
		return domain.TransitionResult{Outcome: domain.OutcomeNotFound}
	}
	log = log.With(orderFields(order)...)

	if order.Status == domain.OrderFailed {
		log.Info("order already marked as failed, skipping update")
		return domain.TransitionResult{Outcome: domain.OutcomeAlreadyApplied, Order: order}
	}
	if !order.Status.CanTransitionTo(domain.OrderFailed) {
		log.Warn("ignoring payment failure for order past pending")
		return domain.TransitionResult{Outcome: domain.OutcomeIgnored, Order: order}
	}

	won, err := s.orderRepo.MarkFailed(ctx, order.ID)
	if err != nil {
		log.Error("failed to mark order as failed", zap.Error(err))
		return failed(fmt.Errorf("mark order %d failed: %w", order.ID, err))
	}
	if !won {
		return s.settleLostRace(ctx, log, order.ID, domain.OrderFailed)
	}

	order.Status = domain.OrderFailed
	order.UpdatedAt = time.Now()
	log.Info("order marked as failed")

	notified := s.notifier.PaymentFailed(ctx, order.ChatID, reason, order.ExternalID)
	if !notified {
		log.Warn("failed payment notification delivery failed")
	}
	return domain.TransitionResult{Outcome: domain.OutcomeApplied, Order: order, Notified: notified}
}

func (s *orderService) ApplyRefund(ctx context.Context, order *domain.Order, refundID string) domain.TransitionResult {
	log := s.logger.With(orderFields(order)...).With(zap.String("refund_id", refundID))

	if order.Status == domain.OrderRefunded {
		log.Info("order already refunded, skipping update", zap.String("existing_refund_id", order.RefundID))
		return domain.TransitionResult{Outcome: domain.OutcomeAlreadyApplied, Order: order}
	}
	if !order.Status.CanTransitionTo(domain.OrderRefunded) {
		log.Warn("ignoring refund for order that was never paid")
		return domain.TransitionResult{Outcome: domain.OutcomeIgnored, Order: order}
	}

	won, err := s.orderRepo.MarkRefunded(ctx, order.ID, refundID)
	if err != nil {
		log.Error("failed to mark order as refunded", zap.Error(err))
		return failed(fmt.Errorf("mark order %d refunded: %w", order.ID, err))
	}
	if !won {
		return s.settleLostRace(ctx, log, order.ID, domain.OrderRefunded)
	}

	updated := *order
	updated.Status = domain.OrderRefunded
	updated.RefundID = refundID
	updated.UpdatedAt = time.Now()
	log.Info("order marked as refunded")

	notified := s.notifier.Refunded(ctx, &updated)
	if !notified {
		log.Warn("refund notification delivery failed but refund was recorded")
	}
	return domain.TransitionResult{Outcome: domain.OutcomeApplied, Order: &updated, Notified: notified}
}

// settleLostRace re-reads an order whose conditional update matched no row
// and reports whether someone else already applied target.
func (s *orderService) settleLostRace(ctx context.Context, log *zap.Logger, id int64, target domain.OrderStatus) domain.TransitionResult {
	current, err := s.orderRepo.FindById(ctx, id)
	if err != nil {
		log.Error("failed to re-read order after conditional update", zap.Error(err))
		return failed(fmt.Errorf("re-read order %d: %w", id, err))
	}
	if current == nil {
		log.Warn("order disappeared during transition")
		return domain.TransitionResult{Outcome: domain.OutcomeNotFound}
	}
	if current.Status == target {
		log.Info("concurrent update already applied transition", zap.String("target", string(target)))
		return domain.TransitionResult{Outcome: domain.OutcomeAlreadyApplied, Order: current}
	}
	log.Warn("transition skipped, order moved on concurrently",
		zap.String("target", string(target)), zap.String("current", string(current.Status)))
	return domain.TransitionResult{Outcome: domain.OutcomeIgnored, Order: current}
}

func (s *orderService) findByRef(ctx context.Context, ref domain.OrderRef) (*domain.Order, error) {
	switch ref.Kind {
	case domain.RefPaymentIntent:
		return s.orderRepo.FindByPaymentIntent(ctx, ref.Value)
	default:
		return s.orderRepo.FindByCheckoutSession(ctx, ref.Value)
	}
}

// Lookup resolves an operator-supplied identifier: a numeric order id first,
// then an external id.
func (s *orderService) Lookup(ctx context.Context, identifier string) (*domain.Order, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.ErrOrderNotFound
	}

	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		order, err := s.orderRepo.FindById(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find order by id: %w", err)
		}
		if order != nil {
			return order, nil
		}
	}

	order, err := s.orderRepo.FindByExternalId(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find order by external id: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

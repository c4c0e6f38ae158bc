package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shopbot/internal/domain"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/repo"
	"shopbot/internal/service"
)

const expiredReason = "Checkout session expired"

// ReconciliationWorker asks the processor about orders that stayed pending
// too long and feeds the answer through the lifecycle, the same way a
// webhook would have. It recovers events that were acknowledged but never
// applied.
type ReconciliationWorker struct {
	orderRepo repo.OrderRepo
	orders    service.OrderService
	gateway   payment.Gateway
	interval  time.Duration
	staleAge  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	orders service.OrderService,
	gateway payment.Gateway,
	interval time.Duration,
	staleAge time.Duration,
	batchSize int,
	logger *zap.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		orderRepo: orderRepo,
		orders:    orders,
		gateway:   gateway,
		interval:  interval,
		staleAge:  staleAge,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started",
		zap.Duration("interval", rw.interval), zap.Duration("stale_age", rw.staleAge))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.Process(ctx); err != nil {
				rw.logger.Error("reconciliation failed", zap.Error(err))
			}
		}
	}
}

// Process runs one reconciliation pass over every stuck order and returns how
// many changed. Orders are paged by id, so sessions that are still open or
// unknown to the processor never hide the orders behind them.
func (rw *ReconciliationWorker) Process(ctx context.Context) (int, error) {
	changed := 0
	var afterID int64
	for {
		page, err := rw.orderRepo.FindStuckOrders(ctx, rw.staleAge, afterID, rw.batchSize)
		if err != nil {
			return changed, err
		}
		if len(page) == 0 {
			return changed, nil
		}

		rw.logger.Info("found stuck orders", zap.Int("count", len(page)), zap.Int64("after_id", afterID))

		for _, order := range page {
			if ctx.Err() != nil {
				return changed, ctx.Err()
			}
			if rw.reconcile(ctx, order) {
				changed++
			}
		}

		if len(page) < rw.batchSize {
			return changed, nil
		}
		afterID = page[len(page)-1].ID
	}
}

func (rw *ReconciliationWorker) reconcile(ctx context.Context, order domain.Order) bool {
	log := rw.logger.With(zap.Int64("order_id", order.ID), zap.String("checkout_session_id", order.CheckoutSessionID))

	sess, err := rw.gateway.GetCheckoutSession(ctx, order.CheckoutSessionID)
	if err != nil {
		// left for the next pass
		log.Warn("failed to check checkout session", zap.Error(err))
		return false
	}

	var res domain.TransitionResult
	switch {
	case sess.Status == payment.SessionComplete && sess.PaymentStatus == payment.SessionPaid:
		res = rw.orders.ApplyPaymentSuccess(ctx, sess.ID, sess.PaymentIntentID)
	case sess.Status == payment.SessionExpired:
		res = rw.orders.ApplyPaymentFailure(ctx, domain.ByCheckoutSession(sess.ID), expiredReason)
	default:
		log.Debug("checkout session still open")
		return false
	}

	if res.Outcome == domain.OutcomeError {
		log.Error("failed to reconcile order", zap.Error(res.Err))
		return false
	}
	if res.Changed() {
		log.Info("order reconciled", zap.String("status", string(res.Order.Status)))
		return true
	}
	return false
}

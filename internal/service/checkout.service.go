package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopbot/internal/catalog"
	"shopbot/internal/domain"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/repo"
)

type Checkout struct {
	Order      *domain.Order
	PaymentURL string
}

type CheckoutService interface {
	Initiate(ctx context.Context, userID int64, chatID int64, productID int64) (*Checkout, error)
}

type checkoutService struct {
	orderRepo repo.OrderRepo
	gateway   payment.Gateway
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

func NewCheckoutService(orderRepo repo.OrderRepo, gateway payment.Gateway, catalog *catalog.Catalog, logger *zap.Logger) CheckoutService {
	return &checkoutService{
		orderRepo: orderRepo,
		gateway:   gateway,
		catalog:   catalog,
		logger:    logger,
	}
}

func (s *checkoutService) Initiate(ctx context.Context, userID int64, chatID int64, productID int64) (*Checkout, error) {
	product, ok := s.catalog.Find(productID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownProduct, productID)
	}

	// generated up front so the processor metadata and the order row agree
	externalID := uuid.NewString()
	currency := strings.ToLower(product.Currency)

	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Amount:      product.Price,
		Currency:    currency,
		ProductName: product.Name,
		Metadata:    map[string]string{"external_id": externalID},
	})
	if err != nil {
		s.logger.Error("checkout session creation failed",
			zap.Int64("product_id", product.ID), zap.String("external_id", externalID), zap.Error(err))
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	order := &domain.Order{
		ExternalID:        externalID,
		UserID:            userID,
		ChatID:            chatID,
		ProductID:         product.ID,
		ProductName:       product.Name,
		Amount:            product.Price,
		Currency:          currency,
		CheckoutSessionID: sess.ID,
		Status:            domain.OrderPending,
	}
	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		s.logger.Error("failed to save order",
			zap.String("external_id", externalID), zap.String("checkout_session_id", sess.ID), zap.Error(err))
		return nil, fmt.Errorf("save order: %w", err)
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("external_id", externalID),
		zap.String("checkout_session_id", sess.ID),
		zap.Int64("user_id", userID))

	return &Checkout{Order: order, PaymentURL: sess.URL}, nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"shopbot/internal/domain"
)

//go:generate mockgen -source=notification.service.go -destination=mock/notification.go -package=mock

// Messenger delivers a text message to a chat and returns its message id.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
}

// NotificationService tells the buyer what happened to their order. Every
// method reports delivery with a bool; a failed send never surfaces as an
// error because it must not affect the order state.
type NotificationService interface {
	PaymentSucceeded(ctx context.Context, order *domain.Order) bool
	PaymentFailed(ctx context.Context, chatID int64, reason string, externalID string) bool
	Refunded(ctx context.Context, order *domain.Order) bool
}

type notificationService struct {
	messenger Messenger
	timeout   time.Duration
	logger    *zap.Logger
}

func NewNotificationService(messenger Messenger, timeout time.Duration, logger *zap.Logger) NotificationService {
	return &notificationService{
		messenger: messenger,
		timeout:   timeout,
		logger:    logger,
	}
}

var currencySymbols = map[string]string{
	"usd": "$",
	"rub": "₽",
	"eur": "€",
}

// FormatAmount renders minor units as "$50.00"; unknown currencies use the
// upper-case code as prefix.
func FormatAmount(amount int64, currency string) string {
	symbol, ok := currencySymbols[strings.ToLower(currency)]
	if !ok {
		symbol = strings.ToUpper(currency)
	}

	d, err := decimal.New(amount, 2)
	if err != nil {
		return fmt.Sprintf("%s%d.%02d", symbol, amount/100, abs(amount%100))
	}
	return symbol + d.String()
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func (s *notificationService) PaymentSucceeded(ctx context.Context, order *domain.Order) bool {
	amount := FormatAmount(order.Amount, order.Currency)
	text := fmt.Sprintf("✅ Payment received!\n\nProduct: %s\nAmount: %s\nOrder number: %s\n\nThank you for your purchase!",
		order.ProductName, amount, order.ExternalID)

	return s.deliver(ctx, "payment success", order.ChatID, text,
		zap.String("external_id", order.ExternalID),
		zap.String("product_name", order.ProductName),
		zap.String("amount", amount))
}

func (s *notificationService) PaymentFailed(ctx context.Context, chatID int64, reason string, externalID string) bool {
	text := fmt.Sprintf("❌ Payment failed\n\nReason: %s\n\nTry again with /shop", reason)

	return s.deliver(ctx, "payment failed", chatID, text,
		zap.String("external_id", externalID),
		zap.String("reason", reason))
}

func (s *notificationService) Refunded(ctx context.Context, order *domain.Order) bool {
	amount := FormatAmount(order.Amount, order.Currency)
	text := fmt.Sprintf("💰 Refund issued\n\nAmount: %s\nOrder number: %s\n\nThe money will be back on your card within 5-10 business days.",
		amount, order.ExternalID)

	return s.deliver(ctx, "refund", order.ChatID, text,
		zap.String("external_id", order.ExternalID),
		zap.String("amount", amount))
}

func (s *notificationService) deliver(ctx context.Context, kind string, chatID int64, text string, fields ...zap.Field) bool {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	fields = append(fields, zap.String("notification", kind), zap.Int64("chat_id", chatID))

	messageID, err := s.messenger.SendMessage(ctx, chatID, text)
	if err != nil {
		s.logger.Error("notification delivery failed",
			append(fields, zap.Error(fmt.Errorf("%w: %v", domain.ErrDelivery, err)))...)
		return false
	}

	s.logger.Info("notification sent", append(fields, zap.Int("message_id", messageID))...)
	return true
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopbot/internal/catalog"
	"shopbot/internal/domain"
	"shopbot/internal/infrastructure/telegram"
	"shopbot/internal/service"
)

const buyPrefix = "buy_"

type Chat interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	SendMenu(ctx context.Context, chatID int64, text string, buttons []telegram.Button) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

type Checkouts interface {
	Initiate(ctx context.Context, userID int64, chatID int64, productID int64) (*service.Checkout, error)
}

// BotHandler is the chat front end: it lists the catalog and turns a
// product choice into a payment link.
type BotHandler struct {
	chat      Chat
	checkouts Checkouts
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

func NewBotHandler(chat Chat, checkouts Checkouts, catalog *catalog.Catalog, logger *zap.Logger) *BotHandler {
	return &BotHandler{
		chat:      chat,
		checkouts: checkouts,
		catalog:   catalog,
		logger:    logger,
	}
}

// Run consumes updates until the channel closes or ctx is done.
func (h *BotHandler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	h.logger.Info("bot started")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.Handle(ctx, update)
		}
	}
}

func (h *BotHandler) Handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(ctx, update.Message)
	}
}

func (h *BotHandler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		h.reply(ctx, chatID, "👋 Welcome to the shop!\n\nUse /shop to browse products.")
	case "shop":
		h.showCatalog(ctx, chatID)
	default:
		h.reply(ctx, chatID, "Unknown command. Use /shop to browse products.")
	}
}

func (h *BotHandler) showCatalog(ctx context.Context, chatID int64) {
	products := h.catalog.Products()
	buttons := make([]telegram.Button, 0, len(products))
	for _, p := range products {
		buttons = append(buttons, telegram.Button{
			Text: fmt.Sprintf("%s - %s", p.Name, service.FormatAmount(p.Price, p.Currency)),
			Data: buyPrefix + strconv.FormatInt(p.ID, 10),
		})
	}
	if err := h.chat.SendMenu(ctx, chatID, "🛍 Choose a product:", buttons); err != nil {
		h.logger.Error("failed to send catalog", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *BotHandler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if err := h.chat.AnswerCallback(ctx, cb.ID); err != nil {
		h.logger.Warn("failed to answer callback", zap.Error(err))
	}
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	raw, ok := strings.CutPrefix(cb.Data, buyPrefix)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.reply(ctx, chatID, "❌ Unknown product")
		return
	}

	co, err := h.checkouts.Initiate(ctx, cb.From.ID, chatID, productID)
	if err != nil {
		h.logger.Error("checkout failed",
			zap.Int64("chat_id", chatID), zap.Int64("product_id", productID), zap.Error(err))
		if errors.Is(err, domain.ErrUnknownProduct) {
			h.reply(ctx, chatID, "❌ Unknown product")
			return
		}
		h.reply(ctx, chatID, "❌ Could not create the payment. Please try again later.")
		return
	}

	h.reply(ctx, chatID, fmt.Sprintf("💳 %s\nAmount: %s\n\nPay here: %s",
		co.Order.ProductName, service.FormatAmount(co.Order.Amount, co.Order.Currency), co.PaymentURL))
}

func (h *BotHandler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.chat.SendMessage(ctx, chatID, text); err != nil {
		h.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

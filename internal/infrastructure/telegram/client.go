package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Button is one inline keyboard button; Data comes back in the callback query.
type Button struct {
	Text string
	Data string
}

// Client wraps the Bot API. Sends honour ctx: the call is abandoned (and
// reported as failed) once ctx is done, even if the API is still working.
type Client struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewClient(token string, logger *zap.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("username", api.Self.UserName))
	return &Client{api: api, logger: logger}, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	return c.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, buttons []Button) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data)))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := c.send(ctx, msg)
	return err
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) (int, error) {
	type result struct {
		id  int
		err error
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	done := make(chan result, 1)
	go func() {
		sent, err := c.api.Send(msg)
		done <- result{id: sent.MessageID, err: err}
	}()

	select {
	case r := <-done:
		return r.id, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Updates starts long polling; the channel is closed after ctx is done.
func (c *Client) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		c.api.StopReceivingUpdates()
	}()
	return updates
}

// Username asks the API who we are; used by health checks.
func (c *Client) Username() (string, error) {
	me, err := c.api.GetMe()
	if err != nil {
		return "", err
	}
	return me.UserName, nil
}

// Package telegram adapts the Telegram Bot API to the transport contract.
// It is the only package importing the Telegram client; the core consumes
// transport.Sender and transport.Event values.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tandembot/tandem/internal/transport"
)

// Client wraps one Telegram bot connection.
type Client struct {
	api *tgbotapi.BotAPI
}

var _ transport.Sender = (*Client)(nil)
var _ transport.MenuSender = (*Client)(nil)

// New connects to the Telegram Bot API with the given token.
func New(token string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot api: %w", err)
	}
	return &Client{api: api}, nil
}

// Username returns the connected bot username, used for invite deep links.
func (c *Client) Username() string {
	if c == nil || c.api == nil {
		return ""
	}
	return c.api.Self.UserName
}

func keyboard(rows [][]transport.Control) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var markupRows [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, control := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(control.Label, control.ActionID))
		}
		if len(buttons) > 0 {
			markupRows = append(markupRows, buttons)
		}
	}
	if len(markupRows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(markupRows...)
	return &markup
}

// Send delivers one message to the account's private chat. The chat id of a
// private chat equals the account id.
func (c *Client) Send(ctx context.Context, accountID int64, text string, rows [][]transport.Control) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	if c == nil || c.api == nil {
		return transport.MessageRef{}, fmt.Errorf("telegram client is not configured")
	}

	msg := tgbotapi.NewMessage(accountID, text)
	if markup := keyboard(rows); markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return transport.MessageRef{}, fmt.Errorf("send message to %d: %w", accountID, err)
	}
	return transport.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// Edit rewrites one previously sent message in place.
func (c *Client) Edit(ctx context.Context, ref transport.MessageRef, text string, rows [][]transport.Control) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.api == nil {
		return fmt.Errorf("telegram client is not configured")
	}
	if ref.Zero() {
		return fmt.Errorf("message ref is required")
	}

	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	if markup := keyboard(rows); markup != nil {
		edit.ReplyMarkup = markup
	}
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("edit message %d/%d: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

// SendMenu delivers one message with a persistent reply keyboard.
func (c *Client) SendMenu(ctx context.Context, accountID int64, text string, menuRows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.api == nil {
		return fmt.Errorf("telegram client is not configured")
	}

	msg := tgbotapi.NewMessage(accountID, text)
	if len(menuRows) > 0 {
		var rows [][]tgbotapi.KeyboardButton
		for _, row := range menuRows {
			var buttons []tgbotapi.KeyboardButton
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, buttons)
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		msg.ReplyMarkup = markup
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send menu to %d: %w", accountID, err)
	}
	return nil
}

func eventFromUpdate(update tgbotapi.Update) (transport.Event, bool) {
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		event := transport.Event{
			AccountID: update.CallbackQuery.From.ID,
			Username:  update.CallbackQuery.From.UserName,
			FirstName: update.CallbackQuery.From.FirstName,
			LastName:  update.CallbackQuery.From.LastName,
			Kind:      transport.KindAction,
			ActionID:  update.CallbackQuery.Data,
		}
		if update.CallbackQuery.Message != nil {
			event.Ref = transport.MessageRef{
				ChatID:    update.CallbackQuery.Message.Chat.ID,
				MessageID: update.CallbackQuery.Message.MessageID,
			}
		}
		return event, true
	}
	if update.Message != nil && update.Message.From != nil {
		return transport.Event{
			AccountID: update.Message.From.ID,
			Username:  update.Message.From.UserName,
			FirstName: update.Message.From.FirstName,
			LastName:  update.Message.From.LastName,
			Kind:      transport.KindText,
			Text:      update.Message.Text,
			Ref: transport.MessageRef{
				ChatID:    update.Message.Chat.ID,
				MessageID: update.Message.MessageID,
			},
		}, true
	}
	return transport.Event{}, false
}

// Listen long-polls Telegram updates and forwards normalized events to the
// handler until context cancellation. Callback queries are acknowledged
// before dispatch so the client stops its spinner regardless of outcome.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, transport.Event)) error {
	if c == nil || c.api == nil {
		return fmt.Errorf("telegram client is not configured")
	}
	if handle == nil {
		return fmt.Errorf("event handler is required")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := c.api.GetUpdatesChan(updateConfig)
	defer c.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram updates channel closed")
			}
			if update.CallbackQuery != nil {
				if _, err := c.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
					log.Printf("answer callback query: %v", err)
				}
			}
			event, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			handle(ctx, event)
		}
	}
}

// Package telegram delivers digests via the Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client sends messages to a fixed chat. Delivery is best-effort: a failed
// send is returned to the caller for logging and is not retried within the
// run.
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient creates a new Telegram client. The chat ID is checked before the
// Bot API handshake so a malformed configuration fails without a network
// round-trip; a bad token still surfaces as a startup error rather than a
// silent delivery failure later.
func NewClient(botToken, chatID string) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &Client{bot: bot, chatID: chatIDInt}, nil
}

// Send delivers a MarkdownV2 message in a single attempt.
func (c *Client) Send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

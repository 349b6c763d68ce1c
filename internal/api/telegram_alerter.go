// Package api provides the outbound interfaces of the importer
package api

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxMessageRunes is Telegram's limit on a text message
const maxMessageRunes = 4096

// TelegramAlerter sends operator alerts to an admin chat
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramAlerter creates an alerter for the bot token. An empty
// endpoint uses the public Bot API.
func NewTelegramAlerter(botToken, endpoint string, chatID int64, logger *zap.Logger) (*TelegramAlerter, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram alerter ready", zap.String("bot", bot.Self.UserName))

	return &TelegramAlerter{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Alert sends text to the admin chat
func (t *TelegramAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, truncate(text, maxMessageRunes))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("failed to send alert", zap.Error(err))
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

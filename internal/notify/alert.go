package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAlerter posts staff alerts to a Telegram chat.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramAlerter{bot: bot, chatID: chatID}, nil
}

func (a *TelegramAlerter) Alert(_ context.Context, text string) error {
	if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

type LogAlerter struct{}

func (LogAlerter) Alert(_ context.Context, text string) error {
	log.Printf("ALERT: %s", text)
	return nil
}

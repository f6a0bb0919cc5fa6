// Package telegram pushes status notifications to reporters who linked
// a Telegram chat. It is an alternate best-effort realtime channel next
// to the websocket hub; failures here never affect the durable record.
package telegram

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier wraps the bot API for outbound messages only.
type Notifier struct {
	BotAPI *tgbotapi.BotAPI
}

// NewNotifier authorizes the bot with the given token.
func NewNotifier(token string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("INFO: telegram notifier authorized on account %s", bot.Self.UserName)
	return &Notifier{BotAPI: bot}, nil
}

// Push sends one text message to the linked chat.
func (n *Notifier) Push(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := n.BotAPI.Send(msg)
	return err
}

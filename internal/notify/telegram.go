package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sehri-go/internal/sehri"
)

// TelegramSender is the part of *tgbotapi.BotAPI the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends reminders to one chat. Permission is granted once a
// chat is configured; a bot cannot ask a user to opt in.
type TelegramNotifier struct {
	bot    TelegramSender
	chatID int64
}

var _ sehri.Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier authenticates with token. An empty endpoint selects the
// public Bot API.
func NewTelegramNotifier(token, endpoint string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram notifier requires a bot token")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	return NewTelegramNotifierWithSender(bot, chatID), nil
}

func NewTelegramNotifierWithSender(bot TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) PermissionState(context.Context) sehri.PermissionState {
	if n.chatID == 0 {
		return sehri.PermissionDenied
	}
	return sehri.PermissionGranted
}

func (n *TelegramNotifier) RequestPermission(ctx context.Context) (sehri.PermissionState, error) {
	return n.PermissionState(ctx), nil
}

func (n *TelegramNotifier) Show(_ context.Context, title, body string) error {
	msg := tgbotapi.NewMessage(n.chatID, title+"\n"+body)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

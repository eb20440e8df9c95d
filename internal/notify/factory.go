package notify

import (
	"fmt"
	"io"

	"sehri-go/internal/config"
	"sehri-go/internal/sehri"
)

// NewNotifierFromConfig creates a Notifier based on the notifier config type.
// Console output goes to out.
func NewNotifierFromConfig(cfg config.NotifierConfig, out io.Writer, clock sehri.Clock) (sehri.Notifier, error) {
	switch cfg.Type {
	case "console", "":
		return NewConsoleNotifier(out, clock), nil
	case "telegram":
		n, err := NewTelegramNotifier(cfg.TelegramToken, "", cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "mqtt":
		clientID := cfg.MQTTClientID
		if clientID == "" {
			clientID = "sehri"
		}
		n, err := ConnectMQTT(cfg.MQTTBroker, clientID, cfg.MQTTTopic, clock)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %q", cfg.Type)
	}
}

// NewVibratorFromConfig returns a bell vibrator, or nil when disabled.
func NewVibratorFromConfig(cfg config.NotifierConfig, out io.Writer) sehri.Vibrator {
	if !cfg.Vibrate {
		return nil
	}
	return NewBellVibrator(out)
}

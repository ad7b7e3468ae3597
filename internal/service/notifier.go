package service

import (
	"avtomaster/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier adapts the Telegram transport to the Notifier the
// lifecycle engine expects. Delivery errors are swallowed into a false
// return; the engine logs and moves on.
type TelegramNotifier struct {
	telegram domain.TelegramService
	logger   *zerolog.Logger
}

func NewTelegramNotifier(telegram domain.TelegramService, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{telegram: telegram, logger: logger}
}

func (n *TelegramNotifier) Notify(chatID int64, text string) bool {
	if _, err := n.telegram.SendMessage(chatID, text); err != nil {
		n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notify failed")
		return false
	}
	return true
}

func (n *TelegramNotifier) NotifyWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) bool {
	if _, err := n.telegram.SendWithInlineKeyboard(chatID, text, keyboard); err != nil {
		n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notify with keyboard failed")
		return false
	}
	return true
}

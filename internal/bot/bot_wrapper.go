package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotWrapper adapts *tgbotapi.BotAPI to the sender interface: the Self
// field becomes a method call.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func NewBotWrapper(bot *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: bot}
}

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func (w *BotWrapper) StopReceivingUpdates() {
	w.BotAPI.StopReceivingUpdates()
}

package bot

import (
	"context"
	"os"
	"time"

	"avtomaster/internal/config"
	"avtomaster/internal/domain"
	"avtomaster/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Bot struct {
	tgService      domain.TelegramService
	config         *config.Config
	stateService   domain.StateManager
	bookingService domain.BookingService
	userService    domain.UserService
	vehicleService domain.VehicleService
	catalog        domain.Catalog
	eventBus       domain.EventPublisher
	metrics        *Metrics
	logger         *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	cfg *config.Config,
	stateService domain.StateManager,
	bookingService domain.BookingService,
	userService domain.UserService,
	vehicleService domain.VehicleService,
	catalog domain.Catalog,
	eventBus domain.EventPublisher,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if eventBus == nil {
		eventBus = events.NewEventBus()
	}
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tgService:      tgService,
		config:         cfg,
		stateService:   stateService,
		bookingService: bookingService,
		userService:    userService,
		vehicleService: vehicleService,
		catalog:        catalog,
		eventBus:       eventBus,
		metrics:        metrics,
		logger:         logger,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var userID int64
		if update.Message != nil {
			userID = update.Message.From.ID
		} else if update.CallbackQuery != nil {
			userID = update.CallbackQuery.From.ID
		}
		if userID == 0 {
			return
		}

		b.trackActivity(userID)

		if !b.userService.IsMaster(userID) {
			allowed, err := b.stateService.CheckRateLimit(updateCtx, userID,
				b.config.Bot.RateLimitMessages, time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
			if err != nil {
				b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
			} else if !allowed {
				b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
				if update.Message != nil {
					b.sendMessage(update.Message.Chat.ID, "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
				}
				return
			}
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update)
			return
		}
		if update.Message == nil {
			return
		}
		b.handleMessage(updateCtx, update)
	})
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) trackActivity(userID int64) {
	// фоновая запись, чтобы не тормозить основной цикл
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.userService.UpdateUserActivity(ctx, userID); err != nil {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to update user activity")
		}
	}()
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.tgService.SendWithInlineKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message with keyboard")
	}
}

func (b *Bot) Stop() {
	b.tgService.StopReceivingUpdates()
}

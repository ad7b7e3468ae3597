package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"avtomaster/internal/api"
	"avtomaster/internal/bot"
	"avtomaster/internal/config"
	"avtomaster/internal/database"
	"avtomaster/internal/domain"
	"avtomaster/internal/events"
	"avtomaster/internal/google"
	"avtomaster/internal/logging"
	"avtomaster/internal/models"
	"avtomaster/internal/reminder"
	"avtomaster/internal/repository"
	"avtomaster/internal/schedule"
	"avtomaster/internal/service"
	"avtomaster/internal/sweeper"
	"avtomaster/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, services, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Shop.Timezone)
	if err != nil {
		return err
	}
	daysOff, err := cfg.Shop.DaysOffWeekdays()
	if err != nil {
		return err
	}
	shop, err := schedule.NewShop(cfg.Shop.OpenTime, cfg.Shop.CloseTime, cfg.Shop.SlotStepMinutes, daysOff, loc)
	if err != nil {
		return err
	}
	clock := schedule.NewClock(loc)

	redisClient, stateService := initStateService(ctx, cfg, &logger)

	sheetsService := initGoogleSheets(ctx, cfg, &logger)

	var sheetsWorker *worker.SheetsWorker
	if sheetsService != nil {
		workerLogger := logging.WithComponent(&logger, "sheets-worker")
		sheetsWorker = worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &workerLogger)
		go sheetsWorker.Start(ctx)
	}

	eventBus := events.NewEventBus()
	subscribeBookingEvents(eventBus, &logger)

	catalog := service.NewCatalogService(services, models.DefaultServiceDuration)
	userService := service.NewUserService(db, cfg.Bot.MasterID, &logger)
	vehicleService := service.NewVehicleService(db, &logger)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug
	tgService := service.NewTelegramService(bot.NewBotWrapper(botAPI))

	notifierLogger := logging.WithComponent(&logger, "notifier")
	notifier := service.NewTelegramNotifier(tgService, &notifierLogger)

	reminderLogger := logging.WithComponent(&logger, "reminder")
	reminders := reminder.NewScheduler(db, notifier, &reminderLogger)
	defer reminders.Stop()

	// типизированный nil в интерфейсе не равен nil, поэтому присваиваем
	// воркер только когда он действительно создан
	var syncWorker domain.SyncWorker
	if sheetsWorker != nil {
		syncWorker = sheetsWorker
	}
	bookingLogger := logging.WithComponent(&logger, "booking")
	bookingService := service.NewBookingService(service.BookingServiceParams{
		Repo:           db,
		Catalog:        catalog,
		Shop:           shop,
		Clock:          clock,
		Notifier:       notifier,
		Reminders:      reminders,
		EventBus:       eventBus,
		SyncWorker:     syncWorker,
		MasterID:       cfg.Bot.MasterID,
		ReminderLead:   time.Duration(cfg.Bot.ReminderLeadMinutes) * time.Minute,
		MaxBookingDays: cfg.Bot.MaxBookingDays,
		Logger:         &bookingLogger,
	})

	// восстанавливаем напоминания по подтверждённым записям
	if err := bookingService.RecoverReminders(ctx); err != nil {
		logger.Error().Err(err).Msg("Ошибка восстановления напоминаний")
	}

	sweepLogger := logging.WithComponent(&logger, "sweeper")
	sw := sweeper.New(db, catalog, shop, clock,
		time.Duration(cfg.Bot.SweepIntervalMin)*time.Minute, &sweepLogger)
	sw.Start(ctx)
	defer sw.Stop()

	metrics := bot.NewMetrics()

	if cfg.Monitoring.PrometheusEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := ":" + strconv.Itoa(cfg.Monitoring.PrometheusPort)
			logger.Info().Str("addr", addr).Msg("Prometheus metrics listening")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	if cfg.API.Enabled {
		apiLogger := logging.WithComponent(&logger, "api")
		apiServer := api.NewHTTPServer(cfg.API, bookingService, catalog, &apiLogger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	telegramBot, err := bot.NewBot(
		tgService, cfg, stateService, bookingService,
		userService, vehicleService, catalog, eventBus,
		metrics, &logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, []models.Service, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := logging.WithComponent(baseLogger, "bot-main")

	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	servicesData, err := os.ReadFile(servicesPath)
	if err != nil {
		logger.Error().Err(err).Msgf("Ошибка чтения %s", servicesPath)
		return nil, nil, zerolog.Logger{}, closer, err
	}

	var servicesConfig struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(servicesData, &servicesConfig); err != nil {
		logger.Error().Err(err).Msg("Ошибка парсинга services.yaml")
		return nil, nil, zerolog.Logger{}, closer, err
	}

	if err := config.ValidateServices(servicesConfig.Services); err != nil {
		logger.Error().Err(err).Msg("Services validation failed")
		return nil, nil, zerolog.Logger{}, closer, err
	}

	return cfg, servicesConfig.Services, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
			return err
		}
	}
	return nil
}

func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	ttl := time.Duration(models.DefaultRedisTTL) * time.Second
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	if redisClient == nil {
		return nil, service.NewStateService(fallbackRepo, logger)
	}

	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewStateService(stateRepo, logger)
}

// initGoogleSheets возвращает nil, когда синхронизация не настроена:
// бот полноценно работает и без неё.
func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		logger.Info().Msg("Google Sheets не настроен, синхронизация отключена")
		return nil
	}

	sheetsSvc, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil
	}
	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc
}

// subscribeBookingEvents подключает журнал событий: каждый переход
// жизненного цикла пишется в лог одной структурированной записью.
func subscribeBookingEvents(bus *events.EventBus, logger *zerolog.Logger) {
	auditLogger := logging.WithComponent(logger, "audit")

	handler := func(ev *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			auditLogger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		auditLogger.Info().
			Str("event", ev.Type).
			Int64("booking_id", payload.BookingID).
			Str("status", payload.Status).
			Str("changed_by", payload.ChangedBy).
			Int64("changed_by_id", payload.ChangedByID).
			Msg("booking event")
		return nil
	}

	for _, eventType := range []string{
		events.EventBookingRequested,
		events.EventBookingConfirmed,
		events.EventBookingRejected,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventBookingReschedule,
	} {
		bus.Subscribe(eventType, handler)
	}
}

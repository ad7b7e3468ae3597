package domain

import (
	"context"
	"time"

	"avtomaster/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Repository is the persistent booking store: users, vehicles, bookings.
// Single-statement ACID semantics; conditional updates carry the
// transition guards.
type Repository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingWithSlotCheck(ctx context.Context, booking *models.Booking, durationMinutes int, durationOf func(string) int) error
	UpdateBookingStatusIf(ctx context.Context, id int64, from, to, reason string) error
	SetProposedTime(ctx context.Context, id int64, proposed string) error
	AcceptProposedTime(ctx context.Context, id int64) error
	DeclineProposedTime(ctx context.Context, id int64, reason string) error
	CancelActiveBooking(ctx context.Context, id int64, reason string) error
	DeleteTerminalBooking(ctx context.Context, id int64) error
	GetBookingsByDate(ctx context.Context, date time.Time) ([]*models.Booking, error)
	GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)

	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateOrUpdateUser(ctx context.Context, user *models.User) error
	UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error
	UpdateUserActivity(ctx context.Context, telegramID int64) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)

	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	GetUserVehicles(ctx context.Context, userID int64) ([]*models.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	DeleteVehicle(ctx context.Context, id int64) error
}

// Catalog resolves service names into durations and prices. Unknown
// names fall back to the default duration.
type Catalog interface {
	DurationMinutesFor(serviceName string) int
	PriceFor(serviceName string) (int64, bool)
	ActiveServices() []models.Service
}

// Notifier delivers a message to a chat participant. A false return is
// a delivery failure that the caller logs but never rolls back on.
type Notifier interface {
	Notify(chatID int64, text string) bool
	NotifyWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) bool
}

// ReminderScheduler manages at most one deferred reminder per booking.
type ReminderScheduler interface {
	Schedule(bookingID int64, fireAt time.Time, chatID int64, text, requireStatus string)
	Cancel(bookingID int64)
}

type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, draft *models.BookingDraft) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// BookingService is the lifecycle engine as the transport layers see it.
type BookingService interface {
	ValidateBookingDate(date time.Time) error
	AvailableSlots(ctx context.Context, date time.Time, serviceName string) ([]string, error)
	CreateBooking(ctx context.Context, ownerTelegramID int64, draft *models.BookingDraft) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, callerID, bookingID int64) error
	RejectBooking(ctx context.Context, callerID, bookingID int64, reason string) error
	ProposeTime(ctx context.Context, callerID, bookingID int64, newTime string) error
	AcceptProposedTime(ctx context.Context, callerID, bookingID int64) error
	DeclineProposedTime(ctx context.Context, callerID, bookingID int64) error
	CancelBooking(ctx context.Context, callerID, bookingID int64) error
	DeleteBooking(ctx context.Context, callerID, bookingID int64) error
	RecoverReminders(ctx context.Context) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetBookingsByDate(ctx context.Context, date time.Time) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
}

type UserService interface {
	IsMaster(telegramID int64) bool
	MasterID() int64
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error
	UpdateUserActivity(ctx context.Context, telegramID int64) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
}

type VehicleService interface {
	RegisterVehicle(ctx context.Context, vehicle *models.Vehicle) error
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	GetUserVehicles(ctx context.Context, userID int64) ([]*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, vehicleID, ownerUserID int64) error
}

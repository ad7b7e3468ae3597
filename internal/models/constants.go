package models

const (
	StatusRequested = "requested"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// Шаги диалога создания записи
const (
	StepMainMenu         = "main_menu"
	StepSelectVehicle    = "select_vehicle"
	StepEnterBrand       = "enter_brand"
	StepEnterYear        = "enter_year"
	StepEnterVIN         = "enter_vin"
	StepEnterPlate       = "enter_plate"
	StepSelectService    = "select_service"
	StepEnterDescription = "enter_description"
	StepSelectDate       = "select_date"
	StepSelectTime       = "select_time"
	StepConfirmDraft     = "confirm_draft"
	StepEnterName        = "enter_name"
	StepEnterPhone       = "enter_phone"
	StepRejectReason     = "reject_reason"
	StepProposeTime      = "propose_time"
)

const (
	// DefaultRedisTTL время жизни состояния диалога в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultServiceDuration длительность услуги, если её нет в каталоге
	DefaultServiceDuration = 60

	// SlotStepMinutes шаг сетки слотов
	SlotStepMinutes = 30

	// SlotsPerPage количество слотов на странице выбора времени
	SlotsPerPage = 6

	// DefaultReminderLead за сколько минут до записи отправляется напоминание
	DefaultReminderLead = 60

	// DefaultSweepIntervalMinutes интервал фоновой проверки завершённых записей
	DefaultSweepIntervalMinutes = 5

	// DefaultPaginationSize размер пагинации списков по умолчанию
	DefaultPaginationSize = 5

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений в секундах
	RateLimitWindow = 60
)

package service

import (
	"context"
	"fmt"
	"time"

	"avtomaster/internal/database"
	"avtomaster/internal/domain"
	"avtomaster/internal/events"
	"avtomaster/internal/models"
	"avtomaster/internal/schedule"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BookingService is the booking lifecycle engine. Every transition
// checks the caller's identity, flips the status through a conditional
// store update and only then fires notifications and reminder changes,
// so a failed side effect never rolls back a committed transition.
type BookingService struct {
	repo           domain.Repository
	catalog        domain.Catalog
	shop           *schedule.Shop
	clock          schedule.Clock
	notifier       domain.Notifier
	reminders      domain.ReminderScheduler
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	masterID       int64
	reminderLead   time.Duration
	maxBookingDays int
	logger         *zerolog.Logger
}

type BookingServiceParams struct {
	Repo           domain.Repository
	Catalog        domain.Catalog
	Shop           *schedule.Shop
	Clock          schedule.Clock
	Notifier       domain.Notifier
	Reminders      domain.ReminderScheduler
	EventBus       domain.EventPublisher
	SyncWorker     domain.SyncWorker
	MasterID       int64
	ReminderLead   time.Duration
	MaxBookingDays int
	Logger         *zerolog.Logger
}

func NewBookingService(p BookingServiceParams) *BookingService {
	if p.MaxBookingDays <= 0 {
		p.MaxBookingDays = 60
	}
	if p.ReminderLead <= 0 {
		p.ReminderLead = time.Duration(models.DefaultReminderLead) * time.Minute
	}
	if p.Clock == nil {
		p.Clock = schedule.NewClock(p.Shop.Location())
	}
	return &BookingService{
		repo:           p.Repo,
		catalog:        p.Catalog,
		shop:           p.Shop,
		clock:          p.Clock,
		notifier:       p.Notifier,
		reminders:      p.Reminders,
		eventBus:       p.EventBus,
		syncWorker:     p.SyncWorker,
		masterID:       p.MasterID,
		reminderLead:   p.ReminderLead,
		maxBookingDays: p.MaxBookingDays,
		logger:         p.Logger,
	}
}

func (s *BookingService) ValidateBookingDate(date time.Time) error {
	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return database.ErrPastDate
	}
	if date.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return database.ErrDateTooFar
	}
	return nil
}

// AvailableSlots computes the bookable start times for a date and a
// service. Rejected bookings free their slot; every other status keeps
// blocking it. For today, slots that already started are dropped.
func (s *BookingService) AvailableSlots(ctx context.Context, date time.Time, serviceName string) ([]string, error) {
	busy, err := s.busyIntervals(ctx, date, 0)
	if err != nil {
		return nil, err
	}

	duration := s.catalog.DurationMinutesFor(serviceName)
	slots := s.shop.AvailableSlots(date, duration, busy)

	now := s.clock.Now()
	if date.Year() == now.Year() && date.YearDay() == now.YearDay() {
		nowMin := now.Hour()*60 + now.Minute()
		filtered := slots[:0]
		for _, slot := range slots {
			start, err := schedule.MinutesOfDay(slot)
			if err != nil {
				continue
			}
			if start >= nowMin {
				filtered = append(filtered, slot)
			}
		}
		slots = filtered
	}
	return slots, nil
}

// CreateBooking builds a booking from a completed draft and asks the
// store to insert it with the slot re-checked in the same transaction.
func (s *BookingService) CreateBooking(ctx context.Context, ownerTelegramID int64, draft *models.BookingDraft) (*models.Booking, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, ownerTelegramID)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.repo.GetVehicle(ctx, draft.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.UserID != user.ID {
		return nil, ErrUnauthorized
	}

	date := draft.DraftDate()
	if date.IsZero() {
		return nil, fmt.Errorf("draft has no valid date")
	}
	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		UserID:      user.ID,
		VehicleID:   vehicle.ID,
		ServiceName: draft.ServiceName,
		Description: draft.Description,
		Date:        date,
		Time:        draft.Time,
	}
	if price, ok := s.catalog.PriceFor(draft.ServiceName); ok {
		booking.Price = &price
	}

	duration := s.catalog.DurationMinutesFor(draft.ServiceName)
	err = s.repo.CreateBookingWithSlotCheck(ctx, booking, duration, s.catalog.DurationMinutesFor)
	if err != nil {
		return nil, err
	}

	s.notifyMasterOfRequest(booking, user, vehicle)
	s.scheduleMasterReminder(booking)
	s.publishEvent(events.EventBookingRequested, booking, "owner", ownerTelegramID)
	s.enqueueSync(ctx, booking, "upsert")

	return booking, nil
}

// ConfirmBooking is the master's approval. The requested→confirmed flip
// happens in one conditional update; a concurrent second confirm (or a
// cancel that got there first) surfaces as ErrAlreadyProcessed.
func (s *BookingService) ConfirmBooking(ctx context.Context, callerID, bookingID int64) error {
	if callerID != s.masterID {
		return ErrUnauthorized
	}

	if err := s.repo.UpdateBookingStatusIf(ctx, bookingID, models.StatusRequested, models.StatusConfirmed, ""); err != nil {
		return err
	}

	booking, user, err := s.bookingWithOwner(ctx, bookingID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("confirm: reload after transition")
		return nil
	}

	text := fmt.Sprintf("✅ Ваша запись подтверждена!\n\n%s", formatBookingBrief(booking))
	if !s.notifier.Notify(user.TelegramID, text) {
		s.logger.Warn().Int64("telegram_id", user.TelegramID).Int64("booking_id", bookingID).Msg("confirm: owner unreachable")
	}

	s.scheduleOwnerReminder(booking, user)
	s.publishEvent(events.EventBookingConfirmed, booking, "master", callerID)
	s.enqueueSync(ctx, booking, "update_status")
	return nil
}

// RejectBooking is the master's refusal with a reason shown to the owner.
func (s *BookingService) RejectBooking(ctx context.Context, callerID, bookingID int64, reason string) error {
	if callerID != s.masterID {
		return ErrUnauthorized
	}

	if err := s.repo.UpdateBookingStatusIf(ctx, bookingID, models.StatusRequested, models.StatusRejected, reason); err != nil {
		return err
	}

	s.reminders.Cancel(bookingID)

	booking, user, err := s.bookingWithOwner(ctx, bookingID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("reject: reload after transition")
		return nil
	}

	text := fmt.Sprintf("❌ Ваша запись отклонена.\n\n%s\nПричина: %s", formatBookingBrief(booking), reason)
	if !s.notifier.Notify(user.TelegramID, text) {
		s.logger.Warn().Int64("telegram_id", user.TelegramID).Int64("booking_id", bookingID).Msg("reject: owner unreachable")
	}

	s.publishEvent(events.EventBookingRejected, booking, "master", callerID)
	s.enqueueSync(ctx, booking, "update_status")
	return nil
}

// ProposeTime stores a reschedule offer on a still-requested booking.
// The new time passes the same slot check as a fresh booking, with the
// booking's own interval excluded from the busy set.
func (s *BookingService) ProposeTime(ctx context.Context, callerID, bookingID int64, newTime string) error {
	if callerID != s.masterID {
		return ErrUnauthorized
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.StatusRequested {
		return database.ErrAlreadyProcessed
	}

	busy, err := s.busyIntervals(ctx, booking.Date, booking.ID)
	if err != nil {
		return err
	}
	duration := s.catalog.DurationMinutesFor(booking.ServiceName)
	if !s.shop.SlotFree(booking.Date, newTime, duration, busy) {
		return database.ErrSlotTaken
	}

	if err := s.repo.SetProposedTime(ctx, bookingID, newTime); err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, booking.UserID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("propose: load owner")
		return nil
	}

	text := fmt.Sprintf("🕒 Мастер предлагает другое время: %s %s\n\n%s",
		booking.Date.Format("02.01.2006"), newTime, formatBookingBrief(booking))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Принять", fmt.Sprintf("accept_time:%d", booking.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отказаться", fmt.Sprintf("decline_time:%d", booking.ID)),
		),
	)
	if !s.notifier.NotifyWithKeyboard(user.TelegramID, text, keyboard) {
		s.logger.Warn().Int64("telegram_id", user.TelegramID).Int64("booking_id", bookingID).Msg("propose: owner unreachable")
	}

	s.publishEvent(events.EventBookingReschedule, booking, "master", callerID)
	return nil
}

// AcceptProposedTime is the owner taking the master's offer: the offered
// time becomes the booking time and the booking is confirmed.
func (s *BookingService) AcceptProposedTime(ctx context.Context, callerID, bookingID int64) error {
	booking, user, err := s.bookingWithOwner(ctx, bookingID)
	if err != nil {
		return err
	}
	if user.TelegramID != callerID {
		return ErrUnauthorized
	}

	if err := s.repo.AcceptProposedTime(ctx, bookingID); err != nil {
		return err
	}

	booking, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("accept: reload after transition")
		return nil
	}

	text := fmt.Sprintf("✅ Клиент принял новое время.\n\n%s", formatBookingBrief(booking))
	if !s.notifier.Notify(s.masterID, text) {
		s.logger.Warn().Int64("booking_id", bookingID).Msg("accept: master unreachable")
	}

	s.scheduleOwnerReminder(booking, user)
	s.publishEvent(events.EventBookingConfirmed, booking, "owner", callerID)
	s.enqueueSync(ctx, booking, "upsert")
	return nil
}

// DeclineProposedTime is the owner refusing the offer; the booking is
// rejected with a fixed reason.
func (s *BookingService) DeclineProposedTime(ctx context.Context, callerID, bookingID int64) error {
	booking, user, err := s.bookingWithOwner(ctx, bookingID)
	if err != nil {
		return err
	}
	if user.TelegramID != callerID {
		return ErrUnauthorized
	}

	if err := s.repo.DeclineProposedTime(ctx, bookingID, ReasonOwnerDeclined); err != nil {
		return err
	}

	s.reminders.Cancel(bookingID)

	text := fmt.Sprintf("❌ Клиент отказался от предложенного времени.\n\n%s", formatBookingBrief(booking))
	if !s.notifier.Notify(s.masterID, text) {
		s.logger.Warn().Int64("booking_id", bookingID).Msg("decline: master unreachable")
	}

	s.publishEvent(events.EventBookingRejected, booking, "owner", callerID)
	s.enqueueSync(ctx, booking, "update_status")
	return nil
}

// CancelBooking is the owner backing out of a requested or confirmed
// booking. Any pending reminder is dropped.
func (s *BookingService) CancelBooking(ctx context.Context, callerID, bookingID int64) error {
	booking, user, err := s.bookingWithOwner(ctx, bookingID)
	if err != nil {
		return err
	}
	if user.TelegramID != callerID {
		return ErrUnauthorized
	}

	if err := s.repo.CancelActiveBooking(ctx, bookingID, ReasonCancelledByOwner); err != nil {
		return err
	}

	s.reminders.Cancel(bookingID)

	text := fmt.Sprintf("🚫 Клиент отменил запись.\n\n%s", formatBookingBrief(booking))
	if !s.notifier.Notify(s.masterID, text) {
		s.logger.Warn().Int64("booking_id", bookingID).Msg("cancel: master unreachable")
	}

	s.publishEvent(events.EventBookingCancelled, booking, "owner", callerID)
	s.enqueueSync(ctx, booking, "update_status")
	return nil
}

// DeleteBooking removes a rejected or cancelled booking at the owner's
// explicit request. Non-terminal bookings stay.
func (s *BookingService) DeleteBooking(ctx context.Context, callerID, bookingID int64) error {
	_, user, err := s.bookingWithOwner(ctx, bookingID)
	if err != nil {
		return err
	}
	if user.TelegramID != callerID {
		return ErrUnauthorized
	}

	return s.repo.DeleteTerminalBooking(ctx, bookingID)
}

// RecoverReminders re-schedules owner reminders for all confirmed
// bookings. Reminders are in-memory only, so the bot calls this once on
// startup to survive restarts.
func (s *BookingService) RecoverReminders(ctx context.Context) error {
	bookings, err := s.repo.GetBookingsByStatus(ctx, models.StatusConfirmed)
	if err != nil {
		return err
	}

	for _, booking := range bookings {
		user, err := s.repo.GetUserByID(ctx, booking.UserID)
		if err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("recover: load owner")
			continue
		}
		s.scheduleOwnerReminder(booking, user)
	}

	s.logger.Info().Int("count", len(bookings)).Msg("reminders recovered for confirmed bookings")
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.repo.GetUserBookings(ctx, userID)
}

func (s *BookingService) GetBookingsByDate(ctx context.Context, date time.Time) ([]*models.Booking, error) {
	return s.repo.GetBookingsByDate(ctx, date)
}

func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.repo.GetBookingsByDateRange(ctx, start, end)
}

func (s *BookingService) GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error) {
	return s.repo.GetDailyBookings(ctx, start, end)
}

// busyIntervals builds the occupied set for a date. Only rejected
// bookings free their slot; excludeID drops the booking being moved.
func (s *BookingService) busyIntervals(ctx context.Context, date time.Time, excludeID int64) ([]schedule.Interval, error) {
	bookings, err := s.repo.GetBookingsByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	var busy []schedule.Interval
	for _, b := range bookings {
		if b.Status == models.StatusRejected || b.ID == excludeID {
			continue
		}
		start, err := schedule.MinutesOfDay(b.Time)
		if err != nil {
			s.logger.Warn().Int64("booking_id", b.ID).Str("time", b.Time).Msg("skipping booking with bad time")
			continue
		}
		busy = append(busy, schedule.Interval{
			Start: start,
			End:   start + s.catalog.DurationMinutesFor(b.ServiceName),
		})
	}
	return busy, nil
}

func (s *BookingService) bookingWithOwner(ctx context.Context, bookingID int64) (*models.Booking, *models.User, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.repo.GetUserByID(ctx, booking.UserID)
	if err != nil {
		return nil, nil, err
	}
	return booking, user, nil
}

func (s *BookingService) notifyMasterOfRequest(booking *models.Booking, user *models.User, vehicle *models.Vehicle) {
	text := fmt.Sprintf("🆕 Новая заявка #%d\n\nКлиент: %s %s\nТелефон: %s\nАвто: %s (%d), %s\n%s",
		booking.ID, user.FirstName, user.LastName, user.Phone,
		vehicle.Brand, vehicle.Year, vehicle.Plate, formatBookingBrief(booking))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", fmt.Sprintf("master_confirm:%d", booking.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🕒 Другое время", fmt.Sprintf("master_propose:%d", booking.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", fmt.Sprintf("master_reject:%d", booking.ID)),
		),
	)
	if !s.notifier.NotifyWithKeyboard(s.masterID, text, keyboard) {
		s.logger.Warn().Int64("booking_id", booking.ID).Msg("create: master unreachable")
	}
}

// scheduleMasterReminder nudges the master about a still-unprocessed
// request shortly before its start time.
func (s *BookingService) scheduleMasterReminder(booking *models.Booking) {
	startAt, err := booking.StartAt(s.shop.Location())
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("master reminder: bad start time")
		return
	}
	text := fmt.Sprintf("⏰ Необработанная заявка #%d скоро начинается: %s %s",
		booking.ID, booking.Date.Format("02.01.2006"), booking.Time)
	s.reminders.Schedule(booking.ID, startAt.Add(-s.reminderLead), s.masterID, text, models.StatusRequested)
}

func (s *BookingService) scheduleOwnerReminder(booking *models.Booking, user *models.User) {
	startAt, err := booking.StartAt(s.shop.Location())
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("owner reminder: bad start time")
		return
	}
	text := fmt.Sprintf("⏰ Напоминание: ваша запись сегодня в %s.\n\n%s", booking.Time, formatBookingBrief(booking))
	s.reminders.Schedule(booking.ID, startAt.Add(-s.reminderLead), user.TelegramID, text, models.StatusConfirmed)
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		VehicleID:   booking.VehicleID,
		ServiceName: booking.ServiceName,
		Status:      booking.Status,
		Date:        booking.Date,
		Time:        booking.Time,
		Reason:      booking.RejectReason,
		ChangedBy:   changedBy,
		ChangedByID: changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.syncWorker == nil {
		return
	}

	var status string
	if taskType == "update_status" {
		status = booking.Status
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, booking.ID, booking, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sync enqueue error")
	}
}

func formatBookingBrief(b *models.Booking) string {
	brief := fmt.Sprintf("Услуга: %s\nДата: %s\nВремя: %s",
		b.ServiceName, b.Date.Format("02.01.2006"), b.Time)
	if b.Price != nil {
		brief += fmt.Sprintf("\nСтоимость: %d ₽", *b.Price)
	}
	return brief
}

package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"avtomaster/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	query := update.CallbackQuery
	data := query.Data
	chatID := query.Message.Chat.ID
	userID := query.From.ID

	// убираем "часики" на кнопке сразу
	if err := b.tgService.AnswerCallback(query.ID, ""); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}

	switch {
	case data == cbMainMenu:
		_ = b.stateService.ClearUserState(ctx, userID)
		b.showMainMenu(chatID)
	case data == cbNewBooking:
		b.startBookingFlow(ctx, chatID, userID)
	case data == cbMyBookings:
		b.showMyBookings(ctx, chatID, userID)
	case data == cbMyVehicles:
		b.showMyVehicles(ctx, chatID, userID)
	case data == cbVehicleNew:
		b.startAddVehicle(ctx, chatID, userID)
	case strings.HasPrefix(data, cbVehicle):
		b.handleVehicleChosen(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbVehicleDelete):
		b.handleVehicleDelete(ctx, chatID, userID, data)
	case data == cbServiceOther:
		b.handleServiceOther(ctx, chatID, userID)
	case strings.HasPrefix(data, cbService):
		b.handleServiceChosen(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbDatePage):
		b.handleDatePage(chatID, query.Message.MessageID, data)
	case strings.HasPrefix(data, cbDate):
		b.handleDateChosen(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbSlotPage):
		b.handleSlotPage(ctx, chatID, userID, query.Message.MessageID, data)
	case strings.HasPrefix(data, cbSlot):
		b.handleSlotChosen(ctx, chatID, userID, data)
	case data == cbConfirmDraft:
		b.handleDraftConfirmed(ctx, chatID, userID)
	case data == cbCancelDraft:
		_ = b.stateService.ClearUserState(ctx, userID)
		b.sendMessage(chatID, "Запись отменена.")
		b.showMainMenu(chatID)
	case strings.HasPrefix(data, cbBookingCancel):
		b.handleBookingCancel(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbBookingDelete):
		b.handleBookingDelete(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbAcceptTime):
		b.handleAcceptTime(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbDeclineTime):
		b.handleDeclineTime(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbMasterConfirm):
		b.handleMasterConfirm(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbMasterReject):
		b.handleMasterReject(ctx, chatID, userID, data)
	case strings.HasPrefix(data, cbMasterPropose):
		b.handleMasterPropose(ctx, chatID, userID, data)
	default:
		b.logger.Warn().Str("data", data).Msg("unknown callback data")
	}
}

// --- поток записи ---

func (b *Bot) startBookingFlow(ctx context.Context, chatID, userID int64) {
	user, err := b.userService.GetUserByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	vehicles, err := b.vehicleService.GetUserVehicles(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	if err := b.stateService.SetUserState(ctx, userID, models.StepSelectVehicle, &models.BookingDraft{}); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	if len(vehicles) == 0 {
		b.startAddVehicle(ctx, chatID, userID)
		return
	}
	b.sendWithKeyboard(chatID, "Какой автомобиль?", vehiclesKeyboard(vehicles))
}

func (b *Bot) startAddVehicle(ctx context.Context, chatID, userID int64) {
	state, _ := b.stateService.GetUserState(ctx, userID)
	var draft *models.BookingDraft
	if state != nil {
		draft = state.EnsureDraft()
	} else {
		draft = &models.BookingDraft{}
	}
	if err := b.stateService.SetUserState(ctx, userID, models.StepEnterBrand, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "Марка и модель автомобиля?")
}

func (b *Bot) handleVehicleChosen(ctx context.Context, chatID, userID int64, data string) {
	vehicleID, ok := parseCallbackID(data, cbVehicle)
	if !ok {
		return
	}

	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil || state == nil {
		b.showMainMenu(chatID)
		return
	}
	draft := state.EnsureDraft()
	draft.VehicleID = vehicleID

	if err := b.stateService.SetUserState(ctx, userID, models.StepSelectService, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.showServiceSelection(chatID)
}

func (b *Bot) handleServiceChosen(ctx context.Context, chatID, userID int64, data string) {
	idx, err := strconv.Atoi(strings.TrimPrefix(data, cbService))
	if err != nil {
		return
	}
	services := b.catalog.ActiveServices()
	if idx < 0 || idx >= len(services) {
		return
	}

	state, err2 := b.stateService.GetUserState(ctx, userID)
	if err2 != nil || state == nil {
		b.showMainMenu(chatID)
		return
	}
	draft := state.EnsureDraft()
	draft.ServiceName = services[idx].Name

	if err := b.stateService.SetUserState(ctx, userID, models.StepSelectDate, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendWithKeyboard(chatID, "Выберите день:", b.datesKeyboard(0))
}

func (b *Bot) handleServiceOther(ctx context.Context, chatID, userID int64) {
	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil || state == nil {
		b.showMainMenu(chatID)
		return
	}
	draft := state.EnsureDraft()
	draft.ServiceName = "Ремонт по описанию"

	if err := b.stateService.SetUserState(ctx, userID, models.StepEnterDescription, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "Опишите своими словами, что нужно сделать.")
}

func (b *Bot) handleDatePage(chatID int64, messageID int, data string) {
	page, err := strconv.Atoi(strings.TrimPrefix(data, cbDatePage))
	if err != nil {
		return
	}
	kb := b.datesKeyboard(page)
	if _, err := b.tgService.EditMessage(chatID, messageID, "Выберите день:", &kb); err != nil {
		b.logger.Debug().Err(err).Msg("edit date page failed")
	}
}

func (b *Bot) handleDateChosen(ctx context.Context, chatID, userID int64, data string) {
	rawDate := strings.TrimPrefix(data, cbDate)
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return
	}
	if err := b.bookingService.ValidateBookingDate(date); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	state, err2 := b.stateService.GetUserState(ctx, userID)
	if err2 != nil || state == nil {
		b.showMainMenu(chatID)
		return
	}
	draft := state.EnsureDraft()
	draft.Date = rawDate
	draft.SlotPage = 0

	if err := b.stateService.SetUserState(ctx, userID, models.StepSelectTime, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.showSlots(ctx, chatID, userID, draft, 0, 0)
}

func (b *Bot) showSlots(ctx context.Context, chatID, userID int64, draft *models.BookingDraft, page, messageID int) {
	slots, err := b.bookingService.AvailableSlots(ctx, draft.DraftDate(), draft.ServiceName)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if b.metrics != nil {
		b.metrics.SlotsOffered.Observe(float64(len(slots)))
	}

	if len(slots) == 0 {
		b.sendWithKeyboard(chatID, "😔 На этот день свободного времени нет. Выберите другой день:", b.datesKeyboard(0))
		return
	}

	text := fmt.Sprintf("Свободное время на %s:", draft.DraftDate().Format("02.01.2006"))
	kb := b.slotsKeyboard(slots, page)
	if messageID != 0 {
		if _, err := b.tgService.EditMessage(chatID, messageID, text, &kb); err != nil {
			b.logger.Debug().Err(err).Msg("edit slots page failed")
		}
		return
	}
	b.sendWithKeyboard(chatID, text, kb)
}

func (b *Bot) handleSlotPage(ctx context.Context, chatID, userID int64, messageID int, data string) {
	page, err := strconv.Atoi(strings.TrimPrefix(data, cbSlotPage))
	if err != nil {
		return
	}
	state, err2 := b.stateService.GetUserState(ctx, userID)
	if err2 != nil || state == nil || state.Draft == nil {
		b.showMainMenu(chatID)
		return
	}
	draft := state.Draft
	draft.SlotPage = page
	_ = b.stateService.SetUserState(ctx, userID, models.StepSelectTime, draft)
	b.showSlots(ctx, chatID, userID, draft, page, messageID)
}

func (b *Bot) handleSlotChosen(ctx context.Context, chatID, userID int64, data string) {
	slot := strings.TrimPrefix(data, cbSlot)
	if !validTimeOfDay(slot) {
		return
	}

	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil || state == nil || state.Draft == nil {
		b.showMainMenu(chatID)
		return
	}
	draft := state.Draft
	draft.Time = slot

	if err := b.stateService.SetUserState(ctx, userID, models.StepConfirmDraft, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("Проверьте заявку:\n\n")
	sb.WriteString(fmt.Sprintf("🔧 %s\n", draft.ServiceName))
	if draft.Description != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", draft.Description))
	}
	sb.WriteString(fmt.Sprintf("📅 %s в %s\n", draft.DraftDate().Format("02.01.2006"), draft.Time))
	if price, ok := b.catalog.PriceFor(draft.ServiceName); ok {
		sb.WriteString(fmt.Sprintf("💰 %d ₽\n", price))
	}
	b.sendWithKeyboard(chatID, sb.String(), draftConfirmKeyboard())
}

func (b *Bot) handleDraftConfirmed(ctx context.Context, chatID, userID int64) {
	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil || state == nil || state.Draft == nil {
		b.showMainMenu(chatID)
		return
	}

	booking, err := b.bookingService.CreateBooking(ctx, userID, state.Draft)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		// слот могли занять, пока клиент думал: показываем время заново
		b.showSlots(ctx, chatID, userID, state.Draft, 0, 0)
		return
	}

	if b.metrics != nil {
		b.metrics.BookingsCreated.WithLabelValues(booking.ServiceName).Inc()
	}
	_ = b.stateService.ClearUserState(ctx, userID)
	b.sendMessage(chatID, fmt.Sprintf("✅ Заявка #%d отправлена мастеру. Я напишу, когда он её подтвердит.", booking.ID))
	b.showMainMenu(chatID)
}

// --- мои записи и гараж ---

func (b *Bot) showMyBookings(ctx context.Context, chatID, userID int64) {
	user, err := b.userService.GetUserByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	bookings, err := b.userService.GetUserBookings(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(bookings) == 0 {
		b.sendWithKeyboard(chatID, "У вас пока нет записей.", mainMenuKeyboard())
		return
	}

	for _, bk := range bookings {
		var rows [][]tgbotapi.InlineKeyboardButton
		if bk.PendingReschedule() {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Принять "+*bk.ProposedTime, cbAcceptTime+strconv.FormatInt(bk.ID, 10)),
				tgbotapi.NewInlineKeyboardButtonData("❌ Отказаться", cbDeclineTime+strconv.FormatInt(bk.ID, 10)),
			))
		}
		if bk.IsActive() {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🚫 Отменить запись", cbBookingCancel+strconv.FormatInt(bk.ID, 10)),
			))
		}
		if bk.Status == models.StatusRejected || bk.Status == models.StatusCancelled {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить из списка", cbBookingDelete+strconv.FormatInt(bk.ID, 10)),
			))
		}

		if len(rows) > 0 {
			b.sendWithKeyboard(chatID, formatBooking(bk), tgbotapi.NewInlineKeyboardMarkup(rows...))
		} else {
			b.sendMessage(chatID, formatBooking(bk))
		}
	}
	b.showMainMenu(chatID)
}

func (b *Bot) showMyVehicles(ctx context.Context, chatID, userID int64) {
	user, err := b.userService.GetUserByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	vehicles, err := b.vehicleService.GetUserVehicles(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(vehicles) == 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("➕ Добавить авто", cbVehicleNew),
			),
			backToMenuRow(),
		)
		b.sendWithKeyboard(chatID, "Гараж пуст.", kb)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var sb strings.Builder
	sb.WriteString("Ваши автомобили:\n\n")
	for i, v := range vehicles {
		sb.WriteString(fmt.Sprintf("%d. %s (%d) %s", i+1, v.Brand, v.Year, v.Plate))
		if v.VIN != "" {
			sb.WriteString(fmt.Sprintf("\n   VIN: %s", v.VIN))
		}
		sb.WriteString("\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 Удалить %s", v.Plate),
				cbVehicleDelete+strconv.FormatInt(v.ID, 10),
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Добавить авто", cbVehicleNew),
	))
	rows = append(rows, backToMenuRow())
	b.sendWithKeyboard(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleVehicleDelete(ctx context.Context, chatID, userID int64, data string) {
	vehicleID, ok := parseCallbackID(data, cbVehicleDelete)
	if !ok {
		return
	}
	user, err := b.userService.GetUserByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if err := b.vehicleService.DeleteVehicle(ctx, vehicleID, user.ID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "Автомобиль удалён из гаража.")
	b.showMyVehicles(ctx, chatID, userID)
}

func (b *Bot) handleBookingCancel(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbBookingCancel)
	if !ok {
		return
	}
	if err := b.bookingService.CancelBooking(ctx, userID, bookingID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if b.metrics != nil {
		b.metrics.BookingTransitions.WithLabelValues(models.StatusCancelled).Inc()
	}
	b.sendMessage(chatID, fmt.Sprintf("🚫 Запись #%d отменена.", bookingID))
}

func (b *Bot) handleBookingDelete(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbBookingDelete)
	if !ok {
		return
	}
	if err := b.bookingService.DeleteBooking(ctx, userID, bookingID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "Запись удалена из списка.")
}

func (b *Bot) handleAcceptTime(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbAcceptTime)
	if !ok {
		return
	}
	if err := b.bookingService.AcceptProposedTime(ctx, userID, bookingID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if b.metrics != nil {
		b.metrics.BookingTransitions.WithLabelValues(models.StatusConfirmed).Inc()
	}
	booking, err := b.bookingService.GetBooking(ctx, bookingID)
	if err == nil {
		b.sendMessage(chatID, fmt.Sprintf("✅ Готово! Ждём вас %s в %s.", booking.Date.Format("02.01.2006"), booking.Time))
	}
}

func (b *Bot) handleDeclineTime(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbDeclineTime)
	if !ok {
		return
	}
	if err := b.bookingService.DeclineProposedTime(ctx, userID, bookingID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if b.metrics != nil {
		b.metrics.BookingTransitions.WithLabelValues(models.StatusRejected).Inc()
	}
	b.sendMessage(chatID, "Запись отклонена. Вы можете выбрать другое время через меню.")
}

// --- кнопки мастера ---

func (b *Bot) handleMasterConfirm(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbMasterConfirm)
	if !ok {
		return
	}
	if err := b.bookingService.ConfirmBooking(ctx, userID, bookingID); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if b.metrics != nil {
		b.metrics.BookingTransitions.WithLabelValues(models.StatusConfirmed).Inc()
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Заявка #%d подтверждена.", bookingID))
}

func (b *Bot) handleMasterReject(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbMasterReject)
	if !ok {
		return
	}
	if !b.userService.IsMaster(userID) {
		return
	}
	draft := &models.BookingDraft{TargetID: bookingID}
	if err := b.stateService.SetUserState(ctx, userID, models.StepRejectReason, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Напишите причину отказа по заявке #%d:", bookingID))
}

func (b *Bot) handleMasterPropose(ctx context.Context, chatID, userID int64, data string) {
	bookingID, ok := parseCallbackID(data, cbMasterPropose)
	if !ok {
		return
	}
	if !b.userService.IsMaster(userID) {
		return
	}
	draft := &models.BookingDraft{TargetID: bookingID}
	if err := b.stateService.SetUserState(ctx, userID, models.StepProposeTime, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Какое время предложить по заявке #%d? Формат ЧЧ:ММ.", bookingID))
}

package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"avtomaster/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	if b.metrics != nil {
		b.metrics.MessagesProcessed.Inc()
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}

	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if state == nil || state.Step == "" || state.Step == models.StepMainMenu {
		b.showMainMenu(chatID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch state.Step {
	case models.StepEnterName:
		b.handleEnterName(ctx, chatID, userID, msg, text)
	case models.StepEnterBrand:
		b.handleEnterBrand(ctx, chatID, userID, state, text)
	case models.StepEnterYear:
		b.handleEnterYear(ctx, chatID, userID, state, text)
	case models.StepEnterVIN:
		b.handleEnterVIN(ctx, chatID, userID, state, text)
	case models.StepEnterPlate:
		b.handleEnterPlate(ctx, chatID, userID, state, text)
	case models.StepEnterDescription:
		b.handleEnterDescription(ctx, chatID, userID, state, text)
	case models.StepRejectReason:
		b.handleRejectReason(ctx, chatID, userID, state, text)
	case models.StepProposeTime:
		b.handleProposeTimeInput(ctx, chatID, userID, state, text)
	default:
		b.showMainMenu(chatID)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "menu":
		_ = b.stateService.ClearUserState(ctx, userID)
		b.showMainMenu(chatID)
	case "cancel":
		_ = b.stateService.ClearUserState(ctx, userID)
		b.sendMessage(chatID, "Действие отменено.")
		b.showMainMenu(chatID)
	case "help":
		b.sendMessage(chatID, "Я бот автосервиса. Через меня можно записаться на ремонт или обслуживание, "+
			"посмотреть свои записи и управлять списком автомобилей.\n\n/menu — главное меню\n/cancel — прервать текущее действие")
	case "today", "week", "export":
		if !b.userService.IsMaster(userID) {
			b.showMainMenu(chatID)
			return
		}
		b.handleMasterCommand(ctx, msg)
	default:
		b.showMainMenu(chatID)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	user := &models.User{
		TelegramID: msg.From.ID,
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	}
	if err := b.userService.SaveUser(ctx, user); err != nil {
		b.logger.Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("Failed to save user")
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	_ = b.stateService.ClearUserState(ctx, msg.From.ID)

	saved, err := b.userService.GetUserByTelegramID(ctx, msg.From.ID)
	if err == nil && saved.Phone == "" {
		reply := tgbotapi.NewMessage(chatID,
			"Здравствуйте! Это запись в автосервис.\n\nЧтобы мастер мог с вами связаться, поделитесь номером телефона.")
		reply.ReplyMarkup = contactKeyboard()
		if _, err := b.tgService.Send(reply); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send contact request")
		}
		return
	}

	b.showMainMenu(chatID)
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// принимаем только собственный контакт
	if msg.Contact.UserID != msg.From.ID {
		b.sendMessage(chatID, "Пожалуйста, отправьте свой собственный контакт.")
		return
	}

	if err := b.userService.UpdateUserPhone(ctx, msg.From.ID, msg.Contact.PhoneNumber); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	reply := tgbotapi.NewMessage(chatID, "Спасибо! Номер сохранён.")
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.tgService.Send(reply); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to confirm contact")
	}
	b.showMainMenu(chatID)
}

func (b *Bot) showMainMenu(chatID int64) {
	b.sendWithKeyboard(chatID, "Чем могу помочь?", mainMenuKeyboard())
}

func (b *Bot) handleEnterName(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message, text string) {
	if text == "" {
		b.sendMessage(chatID, "Напишите, как к вам обращаться.")
		return
	}
	user := &models.User{
		TelegramID: userID,
		Username:   msg.From.UserName,
		FirstName:  text,
	}
	if err := b.userService.SaveUser(ctx, user); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	_ = b.stateService.ClearUserState(ctx, userID)
	b.showMainMenu(chatID)
}

// --- мастер добавления автомобиля ---

func (b *Bot) handleEnterBrand(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	if text == "" {
		b.sendMessage(chatID, "Укажите марку и модель, например: Lada Vesta")
		return
	}
	draft := state.EnsureDraft()
	draft.NewBrand = text
	if err := b.stateService.SetUserState(ctx, userID, models.StepEnterYear, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "Год выпуска?")
}

func (b *Bot) handleEnterYear(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	year, err := strconv.Atoi(text)
	if err != nil {
		b.sendMessage(chatID, "Введите год числом, например: 2018")
		return
	}
	draft := state.EnsureDraft()
	draft.NewYear = year
	if err := b.stateService.SetUserState(ctx, userID, models.StepEnterVIN, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "VIN автомобиля (17 символов)? Если не знаете, напишите «нет».")
}

func (b *Bot) handleEnterVIN(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	draft := state.EnsureDraft()
	if !strings.EqualFold(text, "нет") {
		vin := models.NormalizeVIN(text)
		if !models.ValidVIN(vin) {
			b.sendMessage(chatID, "⚠️ VIN должен состоять из 17 букв и цифр. Попробуйте ещё раз или напишите «нет».")
			return
		}
		draft.NewVIN = vin
	}
	if err := b.stateService.SetUserState(ctx, userID, models.StepEnterPlate, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendMessage(chatID, "Госномер?")
}

func (b *Bot) handleEnterPlate(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	if text == "" {
		b.sendMessage(chatID, "Укажите госномер автомобиля.")
		return
	}

	user, err := b.userService.GetUserByTelegramID(ctx, userID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	draft := state.EnsureDraft()
	vehicle := &models.Vehicle{
		UserID: user.ID,
		Brand:  draft.NewBrand,
		Year:   draft.NewYear,
		VIN:    draft.NewVIN,
		Plate:  strings.ToUpper(text),
	}
	if err := b.vehicleService.RegisterVehicle(ctx, vehicle); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	// продолжаем запись с новым автомобилем
	draft.VehicleID = vehicle.ID
	draft.NewBrand, draft.NewYear, draft.NewVIN = "", 0, ""
	if err := b.stateService.SetUserState(ctx, userID, models.StepSelectService, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	b.sendMessage(chatID, fmt.Sprintf("🚗 %s добавлен в гараж.", vehicle.Brand))
	b.showServiceSelection(chatID)
}

// --- выбор услуги и описание ---

func (b *Bot) showServiceSelection(chatID int64) {
	services := b.catalog.ActiveServices()
	b.sendWithKeyboard(chatID, "Что нужно сделать?", servicesKeyboard(services))
}

func (b *Bot) handleEnterDescription(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	if text == "" {
		b.sendMessage(chatID, "Опишите, что случилось с автомобилем.")
		return
	}
	draft := state.EnsureDraft()
	if draft.ServiceName == "" {
		draft.ServiceName = "Ремонт по описанию"
	}
	draft.Description = text
	if err := b.stateService.SetUserState(ctx, userID, models.StepSelectDate, draft); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	b.sendWithKeyboard(chatID, "Выберите день:", b.datesKeyboard(0))
}

// --- ввод мастера: причина отказа и новое время ---

func (b *Bot) handleRejectReason(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	if !b.userService.IsMaster(userID) {
		b.showMainMenu(chatID)
		return
	}
	if text == "" {
		b.sendMessage(chatID, "Напишите причину отказа, она будет показана клиенту.")
		return
	}

	bookingID := state.EnsureDraft().TargetID
	if err := b.bookingService.RejectBooking(ctx, userID, bookingID, text); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if b.metrics != nil {
		b.metrics.BookingTransitions.WithLabelValues(models.StatusRejected).Inc()
	}
	_ = b.stateService.ClearUserState(ctx, userID)
	b.sendMessage(chatID, fmt.Sprintf("Заявка #%d отклонена.", bookingID))
}

func (b *Bot) handleProposeTimeInput(ctx context.Context, chatID, userID int64, state *models.UserState, text string) {
	if !b.userService.IsMaster(userID) {
		b.showMainMenu(chatID)
		return
	}
	if !validTimeOfDay(text) {
		b.sendMessage(chatID, "Введите время в формате ЧЧ:ММ, например 14:30.")
		return
	}

	bookingID := state.EnsureDraft().TargetID
	if err := b.bookingService.ProposeTime(ctx, userID, bookingID, strings.TrimSpace(text)); err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	_ = b.stateService.ClearUserState(ctx, userID)
	b.sendMessage(chatID, fmt.Sprintf("Предложение отправлено клиенту по заявке #%d.", bookingID))
}

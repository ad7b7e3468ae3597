package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"avtomaster/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Префиксы callback-данных
const (
	cbVehicle       = "veh:"
	cbVehicleNew    = "veh_new"
	cbVehicleDelete = "vdel:"
	cbService       = "svc:"
	cbServiceOther  = "svc_other"
	cbDate          = "date:"
	cbDatePage      = "dpage:"
	cbSlot          = "slot:"
	cbSlotPage      = "spage:"
	cbConfirmDraft  = "draft_ok"
	cbCancelDraft   = "draft_cancel"
	cbBookingCancel = "bcancel:"
	cbBookingDelete = "bdel:"
	cbAcceptTime    = "accept_time:"
	cbDeclineTime   = "decline_time:"
	cbMasterConfirm = "master_confirm:"
	cbMasterReject  = "master_reject:"
	cbMasterPropose = "master_propose:"
	cbMainMenu      = "main_menu"
	cbMyBookings    = "my_bookings"
	cbMyVehicles    = "my_vehicles"
	cbNewBooking    = "new_booking"
)

const (
	btnNewBooking = "📝 Записаться"
	btnMyBookings = "📋 Мои записи"
	btnMyVehicles = "🚗 Мои автомобили"
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnNewBooking, cbNewBooking),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnMyBookings, cbMyBookings),
			tgbotapi.NewInlineKeyboardButtonData(btnMyVehicles, cbMyVehicles),
		),
	)
}

func backToMenuRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", cbMainMenu),
	)
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("📱 Отправить номер телефона"),
		),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

// vehiclesKeyboard перечисляет гараж клиента плюс кнопку добавления
func vehiclesKeyboard(vehicles []*models.Vehicle) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, v := range vehicles {
		label := fmt.Sprintf("%s (%d) %s", v.Brand, v.Year, v.Plate)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbVehicle+strconv.FormatInt(v.ID, 10)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Добавить авто", cbVehicleNew),
	))
	rows = append(rows, backToMenuRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// servicesKeyboard: по кнопке на услугу каталога, плюс свободное описание
func servicesKeyboard(services []models.Service) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, svc := range services {
		label := svc.Name
		if svc.Price > 0 {
			label = fmt.Sprintf("%s — %d ₽", svc.Name, svc.Price)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbService+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔧 Другое (опишу сам)", cbServiceOther),
	))
	rows = append(rows, backToMenuRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// datesKeyboard показывает ближайшие рабочие дни страницами по шесть
func (b *Bot) datesKeyboard(page int) tgbotapi.InlineKeyboardMarkup {
	const perPage = 6

	loc := b.shopLocation()
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	daysOff := b.daysOffSet()

	var workingDays []time.Time
	maxDays := b.config.Bot.MaxBookingDays
	if maxDays <= 0 {
		maxDays = 60
	}
	for i := 0; i <= maxDays; i++ {
		d := today.AddDate(0, 0, i)
		if !daysOff[d.Weekday()] {
			workingDays = append(workingDays, d)
		}
	}

	start := page * perPage
	if start >= len(workingDays) {
		start = 0
		page = 0
	}
	end := start + perPage
	if end > len(workingDays) {
		end = len(workingDays)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range workingDays[start:end] {
		label := fmt.Sprintf("%s (%s)", d.Format("02.01"), weekdayShort(d.Weekday()))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbDate+d.Format("2006-01-02")),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Раньше", cbDatePage+strconv.Itoa(page-1)))
	}
	if end < len(workingDays) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Позже ➡️", cbDatePage+strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, backToMenuRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// slotsKeyboard раскладывает свободные слоты по две кнопки в ряд
func (b *Bot) slotsKeyboard(slots []string, page int) tgbotapi.InlineKeyboardMarkup {
	perPage := b.config.Bot.SlotsPerPage
	if perPage <= 0 {
		perPage = models.SlotsPerPage
	}

	start := page * perPage
	if start >= len(slots) {
		start = 0
		page = 0
	}
	end := start + perPage
	if end > len(slots) {
		end = len(slots)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, slot := range slots[start:end] {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot, cbSlot+slot))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Раньше", cbSlotPage+strconv.Itoa(page-1)))
	}
	if end < len(slots) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Позже ➡️", cbSlotPage+strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, backToMenuRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func draftConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Отправить заявку", cbConfirmDraft),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", cbCancelDraft),
		),
	)
}

func statusEmoji(status string) string {
	switch status {
	case models.StatusRequested:
		return "⏳"
	case models.StatusConfirmed:
		return "✅"
	case models.StatusRejected:
		return "❌"
	case models.StatusCancelled:
		return "🚫"
	case models.StatusCompleted:
		return "🏁"
	default:
		return "•"
	}
}

func statusText(status string) string {
	switch status {
	case models.StatusRequested:
		return "ожидает подтверждения"
	case models.StatusConfirmed:
		return "подтверждена"
	case models.StatusRejected:
		return "отклонена"
	case models.StatusCancelled:
		return "отменена"
	case models.StatusCompleted:
		return "выполнена"
	default:
		return status
	}
}

func formatBooking(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s Запись #%d — %s\n", statusEmoji(b.Status), b.ID, statusText(b.Status)))
	sb.WriteString(fmt.Sprintf("🔧 %s\n", b.ServiceName))
	if b.Description != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", b.Description))
	}
	sb.WriteString(fmt.Sprintf("📅 %s в %s\n", b.Date.Format("02.01.2006"), b.Time))
	if b.PendingReschedule() {
		sb.WriteString(fmt.Sprintf("🕒 Предложено другое время: %s\n", *b.ProposedTime))
	}
	if b.Price != nil {
		sb.WriteString(fmt.Sprintf("💰 %d ₽\n", *b.Price))
	}
	if b.RejectReason != "" {
		sb.WriteString(fmt.Sprintf("Причина: %s\n", b.RejectReason))
	}
	return sb.String()
}

func weekdayShort(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "пн"
	case time.Tuesday:
		return "вт"
	case time.Wednesday:
		return "ср"
	case time.Thursday:
		return "чт"
	case time.Friday:
		return "пт"
	case time.Saturday:
		return "сб"
	case time.Sunday:
		return "вс"
	}
	return ""
}

func (b *Bot) shopLocation() *time.Location {
	loc, err := time.LoadLocation(b.config.Shop.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (b *Bot) daysOffSet() map[time.Weekday]bool {
	off := make(map[time.Weekday]bool)
	days, err := b.config.Shop.DaysOffWeekdays()
	if err != nil {
		return off
	}
	for _, d := range days {
		off[d] = true
	}
	return off
}

func parseCallbackID(data, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// validTimeOfDay проверяет формат "15:04" для ручного ввода мастера
func validTimeOfDay(s string) bool {
	_, err := time.Parse("15:04", strings.TrimSpace(s))
	return err == nil
}

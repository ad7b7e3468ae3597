package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"avtomaster/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleMasterCommand обрабатывает служебные команды мастера
func (b *Bot) handleMasterCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	loc := b.shopLocation()
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch msg.Command() {
	case "today":
		b.sendSchedule(ctx, chatID, today, today)
	case "week":
		b.sendSchedule(ctx, chatID, today, today.AddDate(0, 0, 6))
	case "export":
		b.handleExport(ctx, chatID, msg.CommandArguments(), today)
	}
}

// sendSchedule печатает записи за период, сгруппированные по дням
func (b *Bot) sendSchedule(ctx context.Context, chatID int64, start, end time.Time) {
	bookings, err := b.bookingService.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	var active []*models.Booking
	for _, bk := range bookings {
		if bk.Status == models.StatusRequested || bk.Status == models.StatusConfirmed {
			active = append(active, bk)
		}
	}
	if len(active) == 0 {
		b.sendMessage(chatID, fmt.Sprintf("📅 %s — %s: записей нет.",
			start.Format("02.01"), end.Format("02.01")))
		return
	}

	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].Date.Equal(active[j].Date) {
			return active[i].Date.Before(active[j].Date)
		}
		return active[i].Time < active[j].Time
	})

	var sb strings.Builder
	var currentDay string
	for _, bk := range active {
		day := bk.Date.Format("02.01.2006")
		if day != currentDay {
			sb.WriteString(fmt.Sprintf("\n📅 %s (%s)\n", day, weekdayShort(bk.Date.Weekday())))
			currentDay = day
		}
		sb.WriteString(fmt.Sprintf("  %s %s — %s (#%d)\n", statusEmoji(bk.Status), bk.Time, bk.ServiceName, bk.ID))
	}
	b.sendMessage(chatID, strings.TrimSpace(sb.String()))
}

// handleExport собирает xlsx за период. Аргумент — число дней, по
// умолчанию две недели: /export 30
func (b *Bot) handleExport(ctx context.Context, chatID int64, args string, today time.Time) {
	days := 14
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		if _, err := fmt.Sscanf(trimmed, "%d", &days); err != nil || days <= 0 || days > 366 {
			b.sendMessage(chatID, "Использование: /export [дней], например /export 30")
			return
		}
	}

	filePath, err := b.exportToExcel(ctx, today, today.AddDate(0, 0, days-1))
	if err != nil {
		b.logger.Error().Err(err).Msg("excel export failed")
		b.sendMessage(chatID, "❌ Не удалось сформировать файл экспорта.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(filePath))
	doc.Caption = fmt.Sprintf("Записи на %d дней", days)
	if _, err := b.tgService.Send(doc); err != nil {
		b.logger.Error().Err(err).Str("file", filePath).Msg("failed to send export file")
		b.sendMessage(chatID, "❌ Не удалось отправить файл.")
	}
}

package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"avtomaster/internal/models"

	"github.com/xuri/excelize/v2"
)

// exportToExcel создает Excel файл с расписанием за период
func (b *Bot) exportToExcel(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(b.config.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	dailyBookings, err := b.bookingService.GetDailyBookings(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Записи"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headers := []string{"Дата", "Время", "Услуга", "Описание", "Статус", "Стоимость", "Причина отказа"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	// дни в хронологическом порядке
	var days []string
	for day := range dailyBookings {
		days = append(days, day)
	}
	sort.Strings(days)

	row := 3
	for _, day := range days {
		bookings := dailyBookings[day]
		sort.SliceStable(bookings, func(i, j int) bool {
			return bookings[i].Time < bookings[j].Time
		})
		for _, bk := range bookings {
			b.writeBookingRow(f, sheetName, row, bk)
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "D", 30)
	_ = f.SetColWidth(sheetName, "E", "G", 18)

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	filePath := filepath.Join(b.config.Exports.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	b.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (b *Bot) writeBookingRow(f *excelize.File, sheetName string, row int, bk *models.Booking) {
	values := []interface{}{
		bk.Date.Format("02.01.2006"),
		bk.Time,
		bk.ServiceName,
		bk.Description,
		statusText(bk.Status),
		"",
		bk.RejectReason,
	}
	if bk.Price != nil {
		values[5] = *bk.Price
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}
}

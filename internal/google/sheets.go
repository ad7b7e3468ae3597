// Package google mirrors the booking book into a Google Sheets
// spreadsheet the master can open from a phone. Sync is one-way and
// best effort; sqlite stays the source of truth.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"avtomaster/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	bookingsSheetName = "Записи"
	bookingsRange     = bookingsSheetName + "!A:J"
	headerRows        = 1
)

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string

	// rowCache maps booking id to its 1-based sheet row.
	cacheMu  sync.RWMutex
	rowCache map[int64]int
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	s := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	go s.refreshCacheLoop()

	return s, nil
}

// TestConnection читает первую ячейку листа записей
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets connection test: %w", err)
	}
	return nil
}

// ServiceAccountEmail extracts the account email from the credentials
// file, for the "share the spreadsheet with this address" setup step.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// UpsertBooking writes the booking into its row, appending when the
// booking is not on the sheet yet.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	row := s.cachedRow(booking.ID)
	if row == 0 {
		var err error
		row, err = s.findRow(ctx, booking.ID)
		if err != nil {
			return err
		}
	}

	values := &sheets.ValueRange{Values: [][]interface{}{bookingRow(booking)}}

	if row == 0 {
		resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, bookingsRange, values).
			ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append booking %d: %w", booking.ID, err)
		}
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			if n := parseRowFromRange(resp.Updates.UpdatedRange); n > 0 {
				s.storeRow(booking.ID, n)
			}
		}
		return nil
	}

	writeRange := fmt.Sprintf("%s!A%d:J%d", bookingsSheetName, row, row)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, values).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update booking %d at row %d: %w", booking.ID, row, err)
	}
	return nil
}

// UpdateBookingStatus rewrites only the status cell.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	row := s.cachedRow(bookingID)
	if row == 0 {
		var err error
		row, err = s.findRow(ctx, bookingID)
		if err != nil {
			return err
		}
	}
	if row == 0 {
		// записи нет на листе, статус писать некуда
		return nil
	}

	writeRange := fmt.Sprintf("%s!H%d", bookingsSheetName, row)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, &sheets.ValueRange{
		Values: [][]interface{}{{statusLabel(status)}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update status of booking %d: %w", bookingID, err)
	}
	return nil
}

// DeleteBookingRow blanks the booking's row. Blanking instead of
// removing keeps the cached row numbers of everything below valid.
func (s *SheetsService) DeleteBookingRow(ctx context.Context, bookingID int64) error {
	row := s.cachedRow(bookingID)
	if row == 0 {
		var err error
		row, err = s.findRow(ctx, bookingID)
		if err != nil {
			return err
		}
	}
	if row == 0 {
		return nil
	}

	writeRange := fmt.Sprintf("%s!A%d:J%d", bookingsSheetName, row, row)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, &sheets.ValueRange{
		Values: [][]interface{}{make([]interface{}, 10)},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row of booking %d: %w", bookingID, err)
	}

	s.cacheMu.Lock()
	delete(s.rowCache, bookingID)
	s.cacheMu.Unlock()
	return nil
}

// WarmUpCache reads column A and rebuilds the id→row map.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("warm up row cache: %w", err)
	}

	fresh := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if i < headerRows || len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(fmt.Sprint(row[0]), 10, 64)
		if err != nil {
			continue
		}
		fresh[id] = i + 1
	}

	s.cacheMu.Lock()
	s.rowCache = fresh
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) refreshCacheLoop() {
	warm := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = s.WarmUpCache(ctx)
	}
	warm()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		warm()
	}
}

func (s *SheetsService) cachedRow(bookingID int64) int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.rowCache[bookingID]
}

func (s *SheetsService) storeRow(bookingID int64, row int) {
	s.cacheMu.Lock()
	s.rowCache[bookingID] = row
	s.cacheMu.Unlock()
}

func (s *SheetsService) findRow(ctx context.Context, bookingID int64) (int, error) {
	if err := s.WarmUpCache(ctx); err != nil {
		return 0, err
	}
	return s.cachedRow(bookingID), nil
}

func bookingRow(b *models.Booking) []interface{} {
	price := ""
	if b.Price != nil {
		p := *b.Price
		price = strconv.FormatInt(p, 10)
	}
	return []interface{}{
		b.ID,
		b.Date.Format("02.01.2006"),
		b.Time,
		b.ServiceName,
		b.Description,
		b.UserID,
		b.VehicleID,
		statusLabel(b.Status),
		price,
		b.RejectReason,
	}
}

func statusLabel(status string) string {
	switch status {
	case models.StatusRequested:
		return "заявка"
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

// parseRowFromRange pulls the first row number out of an A1 range like
// "Записи!A12:J12".
func parseRowFromRange(a1 string) int {
	digits := ""
	started := false
	for _, r := range a1 {
		if r >= '0' && r <= '9' {
			digits += string(r)
			started = true
			continue
		}
		if started {
			break
		}
	}
	n, _ := strconv.Atoi(digits)
	return n
}

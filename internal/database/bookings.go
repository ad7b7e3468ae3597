package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"avtomaster/internal/models"
)

const bookingColumns = `id, user_id, vehicle_id, service_name, description, date, time,
       proposed_time, status, reject_reason, price, created_at, updated_at`

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	row := db.QueryRowContext(ctx, query, id)
	booking, err := scanBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// CreateBookingWithSlotCheck inserts a booking after re-validating the
// slot inside the same transaction. The overlap test needs catalog
// durations, so the caller supplies durationOf; rejected bookings do
// not occupy their slot, every other status does.
func (db *DB) CreateBookingWithSlotCheck(ctx context.Context, booking *models.Booking, durationMinutes int, durationOf func(string) int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT time, service_name FROM bookings WHERE date = ? AND status != ?`,
		booking.Date.Format("2006-01-02"), models.StatusRejected,
	)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}

	start, err := minutesOfDay(booking.Time)
	if err != nil {
		rows.Close()
		return err
	}
	end := start + durationMinutes

	for rows.Next() {
		var occupiedTime, serviceName string
		if err := rows.Scan(&occupiedTime, &serviceName); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan occupied slot: %w", err)
		}
		occStart, err := minutesOfDay(occupiedTime)
		if err != nil {
			continue
		}
		occEnd := occStart + durationOf(serviceName)
		if start < occEnd && occStart < end {
			rows.Close()
			return ErrSlotTaken
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate occupied slots: %w", err)
	}
	rows.Close()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, vehicle_id, service_name, description, date, time, status, price, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.UserID, booking.VehicleID, booking.ServiceName, booking.Description,
		booking.Date.Format("2006-01-02"), booking.Time, models.StatusRequested, booking.Price, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.Status = models.StatusRequested
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return tx.Commit()
}

// UpdateBookingStatusIf flips status from one value to another in a
// single conditional UPDATE. Zero affected rows means another actor got
// there first; the caller receives ErrAlreadyProcessed and must not
// treat the transition as done. Any outstanding reschedule offer is
// cleared by the same statement.
func (db *DB) UpdateBookingStatusIf(ctx context.Context, id int64, from, to, reason string) error {
	query := `UPDATE bookings SET status = ?, reject_reason = ?, proposed_time = NULL, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, to, nullableString(reason), time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// SetProposedTime stores a reschedule offer on a still-requested booking.
func (db *DB) SetProposedTime(ctx context.Context, id int64, proposed string) error {
	query := `UPDATE bookings SET proposed_time = ?, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, proposed, time.Now(), id, models.StatusRequested)
	if err != nil {
		return fmt.Errorf("failed to set proposed time: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// AcceptProposedTime moves the offered time into place and confirms the
// booking, all in one conditional UPDATE.
func (db *DB) AcceptProposedTime(ctx context.Context, id int64) error {
	query := `UPDATE bookings SET time = proposed_time, proposed_time = NULL, status = ?, updated_at = ?
              WHERE id = ? AND status = ? AND proposed_time IS NOT NULL`
	result, err := db.ExecContext(ctx, query, models.StatusConfirmed, time.Now(), id, models.StatusRequested)
	if err != nil {
		return fmt.Errorf("failed to accept proposed time: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// DeclineProposedTime rejects the booking in response to a declined offer.
func (db *DB) DeclineProposedTime(ctx context.Context, id int64, reason string) error {
	query := `UPDATE bookings SET status = ?, reject_reason = ?, proposed_time = NULL, updated_at = ?
              WHERE id = ? AND status = ? AND proposed_time IS NOT NULL`
	result, err := db.ExecContext(ctx, query, models.StatusRejected, reason, time.Now(), id, models.StatusRequested)
	if err != nil {
		return fmt.Errorf("failed to decline proposed time: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// CancelActiveBooking moves a requested or confirmed booking to
// cancelled. Terminal statuses stay untouched.
func (db *DB) CancelActiveBooking(ctx context.Context, id int64, reason string) error {
	query := `UPDATE bookings SET status = ?, reject_reason = ?, proposed_time = NULL, updated_at = ?
              WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query,
		models.StatusCancelled, reason, time.Now(), id, models.StatusRequested, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// DeleteTerminalBooking removes a booking only from a terminal status.
func (db *DB) DeleteTerminalBooking(ctx context.Context, id int64) error {
	query := `DELETE FROM bookings WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query, id, models.StatusRejected, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotTerminal
	}
	return nil
}

func (db *DB) GetBookingsByDate(ctx context.Context, date time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE date = ? ORDER BY time`
	return db.queryBookings(ctx, query, date.Format("2006-01-02"))
}

func (db *DB) GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY date, time`
	return db.queryBookings(ctx, query, status)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE date >= ? AND date <= ? ORDER BY date, time`
	return db.queryBookings(ctx, query, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
}

func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	// Показываем записи за последние 2 недели и все будущие
	twoWeeksAgo := time.Now().AddDate(0, 0, -14).Format("2006-01-02")
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? AND date >= ? ORDER BY date DESC, time DESC`
	return db.queryBookings(ctx, query, userID, twoWeeksAgo)
}

func (db *DB) GetDailyBookings(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		dateKey := b.Date.Format("2006-01-02")
		daily[dateKey] = append(daily[dateKey], b)
	}
	return daily, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(scan func(dest ...any) error) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	var description, proposedTime, rejectReason sql.NullString
	var price sql.NullInt64
	err := scan(
		&b.ID, &b.UserID, &b.VehicleID, &b.ServiceName, &description, &dateStr, &b.Time,
		&proposedTime, &b.Status, &rejectReason, &price, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Date, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	b.Description = description.String
	b.RejectReason = rejectReason.String
	if proposedTime.Valid && proposedTime.String != "" {
		b.ProposedTime = &proposedTime.String
	}
	if price.Valid {
		b.Price = &price.Int64
	}
	return &b, nil
}

func minutesOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse booking time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

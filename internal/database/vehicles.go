package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"avtomaster/internal/models"
)

func (db *DB) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `INSERT INTO vehicles (user_id, brand, year, vin, plate, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		vehicle.UserID, vehicle.Brand, vehicle.Year, vehicle.VIN, vehicle.Plate, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	vehicle.ID = id
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	return nil
}

func (db *DB) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	query := `SELECT id, user_id, brand, year, vin, plate, created_at, updated_at
              FROM vehicles WHERE id = ?`
	var v models.Vehicle
	var plate sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.UserID, &v.Brand, &v.Year, &v.VIN, &plate, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	v.Plate = plate.String
	return &v, nil
}

func (db *DB) GetUserVehicles(ctx context.Context, userID int64) ([]*models.Vehicle, error) {
	query := `SELECT id, user_id, brand, year, vin, plate, created_at, updated_at
              FROM vehicles WHERE user_id = ? ORDER BY created_at`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		var plate sql.NullString
		if err := rows.Scan(&v.ID, &v.UserID, &v.Brand, &v.Year, &v.VIN, &plate, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		v.Plate = plate.String
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}

// DeleteVehicle removes a vehicle together with its non-active bookings.
// A vehicle referenced by a requested or confirmed booking is protected:
// the check and both deletes run in one transaction.
func (db *DB) DeleteVehicle(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var activeCount int
	checkQuery := `SELECT COUNT(*) FROM bookings WHERE vehicle_id = ? AND status IN (?, ?)`
	err = tx.QueryRowContext(ctx, checkQuery, id, models.StatusRequested, models.StatusConfirmed).Scan(&activeCount)
	if err != nil {
		return fmt.Errorf("failed to check vehicle bookings: %w", err)
	}
	if activeCount > 0 {
		return ErrVehicleHasBookings
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE vehicle_id = ?`, id); err != nil {
		return fmt.Errorf("failed to purge vehicle bookings: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

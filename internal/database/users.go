package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"avtomaster/internal/models"
)

func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (telegram_id, username, first_name, last_name, phone, last_activity, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(telegram_id) DO UPDATE SET
                username = excluded.username,
                first_name = excluded.first_name,
                last_name = excluded.last_name,
                last_activity = excluded.last_activity,
                updated_at = excluded.updated_at`
	now := time.Now()
	if _, err := db.ExecContext(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.Phone, now, now, now,
	); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	stored, err := db.GetUserByTelegramID(ctx, user.TelegramID)
	if err != nil {
		return err
	}
	user.ID = stored.ID
	user.LastActivity = now
	return nil
}

func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT id, telegram_id, username, first_name, last_name, phone, last_activity, created_at, updated_at
              FROM users WHERE telegram_id = ?`
	return db.scanUser(db.QueryRowContext(ctx, query, telegramID))
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, telegram_id, username, first_name, last_name, phone, last_activity, created_at, updated_at
              FROM users WHERE id = ?`
	return db.scanUser(db.QueryRowContext(ctx, query, id))
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var username, lastName, phone sql.NullString
	err := row.Scan(
		&user.ID, &user.TelegramID, &username, &user.FirstName, &lastName, &phone,
		&user.LastActivity, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Username = username.String
	user.LastName = lastName.String
	user.Phone = phone.String
	return &user, nil
}

func (db *DB) UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error {
	query := `UPDATE users SET phone = ?, updated_at = ? WHERE telegram_id = ?`
	result, err := db.ExecContext(ctx, query, phone, time.Now(), telegramID)
	if err != nil {
		return fmt.Errorf("failed to update user phone: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) UpdateUserActivity(ctx context.Context, telegramID int64) error {
	query := `UPDATE users SET last_activity = ? WHERE telegram_id = ?`
	_, err := db.ExecContext(ctx, query, time.Now(), telegramID)
	return err
}

func (db *DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, telegram_id, username, first_name, last_name, phone, last_activity, created_at, updated_at
              FROM users ORDER BY created_at`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		var username, lastName, phone sql.NullString
		if err := rows.Scan(
			&user.ID, &user.TelegramID, &username, &user.FirstName, &lastName, &phone,
			&user.LastActivity, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Username = username.String
		user.LastName = lastName.String
		user.Phone = phone.String
		users = append(users, &user)
	}
	return users, rows.Err()
}

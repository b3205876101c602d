package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/aidiag/internal/model"
)

// CreateAdmin inserts a new admin account.
func (s *Store) CreateAdmin(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (username, password_hash, active, created_at) VALUES (?, ?, 1, ?)`,
		username, passwordHash, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create admin", "username", username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created admin", "id", id, "username", username)
	return id, nil
}

// GetAdmin returns an admin by username, or nil if there is none.
func (s *Store) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, active, created_at FROM admins WHERE username = ?`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAdminPassword replaces the password hash of an existing admin.
func (s *Store) SetAdminPassword(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admins SET password_hash = ? WHERE username = ?`, passwordHash, username)
	return err
}

// AdminCount returns the total number of admins.
func (s *Store) AdminCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count)
	return count, err
}

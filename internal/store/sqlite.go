// Package store provides storage backends for hvacpilot.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/coilworks/hvacpilot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path to the database file; the directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, subscription_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, nilIfEmpty(u.SubscriptionID), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			slog.Warn("SQLiteStore CreateUser duplicate email", "email", u.Email)
			return ErrDuplicateEmail
		}
		slog.Error("SQLiteStore CreateUser failed", "error", err)
		return fmt.Errorf("failed to insert user: %w", err)
	}
	slog.Debug("SQLiteStore CreateUser succeeded", "id", u.ID)
	return nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, subscription_id, created_at, updated_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, subscription_id, created_at, updated_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *SQLiteStore) UpdateUserSubscription(ctx context.Context, userID, subscriptionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nilIfEmpty(subscriptionID), userID)
	if err != nil {
		slog.Error("SQLiteStore UpdateUserSubscription failed", "error", err, "user", userID)
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) AddManual(ctx context.Context, m models.Manual) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manuals (id, title, category, subcategory, description, file_name, object_key, file_type, file_size, is_public, uploaded_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Category, nilIfEmpty(m.Subcategory), nilIfEmpty(m.Description),
		m.FileName, m.ObjectKey, m.FileType, m.FileSize, m.IsPublic, nilIfEmpty(m.UploadedBy),
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddManual failed", "error", err, "id", m.ID)
		return fmt.Errorf("failed to insert manual: %w", err)
	}
	slog.Debug("SQLiteStore AddManual succeeded", "id", m.ID, "title", m.Title)
	return nil
}

func (s *SQLiteStore) GetManual(ctx context.Context, id string) (models.Manual, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, category, subcategory, description, file_name, object_key, file_type, file_size, is_public, uploaded_by, created_at, updated_at
		 FROM manuals WHERE id = ?`, id)
	return scanManualRow(row)
}

func (s *SQLiteStore) ListManuals(ctx context.Context) ([]models.Manual, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category, subcategory, description, file_name, object_key, file_type, file_size, is_public, uploaded_by, created_at, updated_at
		 FROM manuals ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListManuals query failed", "error", err)
		return nil, fmt.Errorf("failed to query manuals: %w", err)
	}
	defer rows.Close()

	var manuals []models.Manual
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			slog.Error("SQLiteStore ListManuals scan failed", "error", err)
			return nil, err
		}
		manuals = append(manuals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manual rows: %w", err)
	}
	slog.Debug("SQLiteStore ListManuals succeeded", "count", len(manuals))
	return manuals, nil
}

func (s *SQLiteStore) DeleteManual(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM manuals WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteManual failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete manual: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrManualNotFound
	}
	return nil
}

func (s *SQLiteStore) AddDiagnosisRecord(ctx context.Context, rec models.DiagnosisRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagnosis_history (id, user_id, system, category, title, ai_powered, resolved_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nilIfEmpty(rec.UserID), rec.System, rec.Category, rec.Title, rec.AIPowered, nilIfEmpty(rec.ResolvedBy), rec.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddDiagnosisRecord failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert diagnosis record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDiagnosisHistory(ctx context.Context, userID string, limit int) ([]models.DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, system, category, title, ai_powered, resolved_by, created_at
		 FROM diagnosis_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		slog.Error("SQLiteStore GetDiagnosisHistory query failed", "error", err)
		return nil, fmt.Errorf("failed to query diagnosis history: %w", err)
	}
	defer rows.Close()

	var recs []models.DiagnosisRecord
	for rows.Next() {
		rec, err := scanDiagnosisRecord(rows)
		if err != nil {
			slog.Error("SQLiteStore GetDiagnosisHistory scan failed", "error", err)
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) AddSubscriptionEvent(ctx context.Context, ev models.SubscriptionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription_events (id, event_type, subscription_id, user_id, received_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.EventType, ev.SubscriptionID, nilIfEmpty(ev.UserID), ev.ReceivedAt)
	if err != nil {
		slog.Error("SQLiteStore AddSubscriptionEvent failed", "error", err, "id", ev.ID)
		return fmt.Errorf("failed to insert subscription event: %w", err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

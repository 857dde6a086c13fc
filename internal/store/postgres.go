// Package store provides storage backends for hvacpilot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/coilworks/hvacpilot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, subscription_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, nilIfEmpty(u.SubscriptionID), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			slog.Warn("PostgresStore CreateUser duplicate email", "email", u.Email)
			return ErrDuplicateEmail
		}
		slog.Error("PostgresStore CreateUser failed", "error", err)
		return fmt.Errorf("failed to insert user: %w", err)
	}
	slog.Debug("PostgresStore CreateUser succeeded", "id", u.ID)
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, subscription_id, created_at, updated_at FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, subscription_id, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserSubscription(ctx context.Context, userID, subscriptionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_id = $1, updated_at = NOW() WHERE id = $2`,
		nilIfEmpty(subscriptionID), userID)
	if err != nil {
		slog.Error("PostgresStore UpdateUserSubscription failed", "error", err, "user", userID)
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) AddManual(ctx context.Context, m models.Manual) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manuals (id, title, category, subcategory, description, file_name, object_key, file_type, file_size, is_public, uploaded_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.Title, m.Category, nilIfEmpty(m.Subcategory), nilIfEmpty(m.Description),
		m.FileName, m.ObjectKey, m.FileType, m.FileSize, m.IsPublic, nilIfEmpty(m.UploadedBy),
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore AddManual failed", "error", err, "id", m.ID)
		return fmt.Errorf("failed to insert manual: %w", err)
	}
	slog.Debug("PostgresStore AddManual succeeded", "id", m.ID, "title", m.Title)
	return nil
}

func (s *PostgresStore) GetManual(ctx context.Context, id string) (models.Manual, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, category, subcategory, description, file_name, object_key, file_type, file_size, is_public, uploaded_by, created_at, updated_at
		 FROM manuals WHERE id = $1`, id)
	return scanManualRow(row)
}

func (s *PostgresStore) ListManuals(ctx context.Context) ([]models.Manual, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category, subcategory, description, file_name, object_key, file_type, file_size, is_public, uploaded_by, created_at, updated_at
		 FROM manuals ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListManuals query failed", "error", err)
		return nil, fmt.Errorf("failed to query manuals: %w", err)
	}
	defer rows.Close()

	var manuals []models.Manual
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			slog.Error("PostgresStore ListManuals scan failed", "error", err)
			return nil, err
		}
		manuals = append(manuals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manual rows: %w", err)
	}
	slog.Debug("PostgresStore ListManuals succeeded", "count", len(manuals))
	return manuals, nil
}

func (s *PostgresStore) DeleteManual(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM manuals WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteManual failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete manual: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrManualNotFound
	}
	return nil
}

func (s *PostgresStore) AddDiagnosisRecord(ctx context.Context, rec models.DiagnosisRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagnosis_history (id, user_id, system, category, title, ai_powered, resolved_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, nilIfEmpty(rec.UserID), rec.System, rec.Category, rec.Title, rec.AIPowered, nilIfEmpty(rec.ResolvedBy), rec.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddDiagnosisRecord failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert diagnosis record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDiagnosisHistory(ctx context.Context, userID string, limit int) ([]models.DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, system, category, title, ai_powered, resolved_by, created_at
		 FROM diagnosis_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		slog.Error("PostgresStore GetDiagnosisHistory query failed", "error", err)
		return nil, fmt.Errorf("failed to query diagnosis history: %w", err)
	}
	defer rows.Close()

	var recs []models.DiagnosisRecord
	for rows.Next() {
		rec, err := scanDiagnosisRecord(rows)
		if err != nil {
			slog.Error("PostgresStore GetDiagnosisHistory scan failed", "error", err)
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return recs, nil
}

func (s *PostgresStore) AddSubscriptionEvent(ctx context.Context, ev models.SubscriptionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription_events (id, event_type, subscription_id, user_id, received_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.EventType, ev.SubscriptionID, nilIfEmpty(ev.UserID), ev.ReceivedAt)
	if err != nil {
		slog.Error("PostgresStore AddSubscriptionEvent failed", "error", err, "id", ev.ID)
		return fmt.Errorf("failed to insert subscription event: %w", err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}

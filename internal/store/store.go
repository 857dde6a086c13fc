// Package store provides storage backends for hvacpilot.
//
// It includes an in-memory store for development and tests, plus SQLite and
// PostgreSQL stores for persistent deployments. All backends implement the
// Store interface covering users, manual metadata, diagnosis history, and
// subscription events.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/coilworks/hvacpilot/internal/models"
)

// Store errors shared by all backends.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrManualNotFound = errors.New("manual not found")
)

// Store is the persistence surface used by the API and engine layers.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	UpdateUserSubscription(ctx context.Context, userID, subscriptionID string) error

	// Manual metadata (file content lives in object storage)
	AddManual(ctx context.Context, m models.Manual) error
	GetManual(ctx context.Context, id string) (models.Manual, error)
	ListManuals(ctx context.Context) ([]models.Manual, error)
	DeleteManual(ctx context.Context, id string) error

	// Diagnosis history
	AddDiagnosisRecord(ctx context.Context, rec models.DiagnosisRecord) error
	GetDiagnosisHistory(ctx context.Context, userID string, limit int) ([]models.DiagnosisRecord, error)

	// Billing
	AddSubscriptionEvent(ctx context.Context, ev models.SubscriptionEvent) error

	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// postgres:// URL or key=value string for PostgreSQL.
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// are URLs or key=value strings; anything else is treated as a SQLite path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// isDuplicateKey reports whether a driver error indicates a unique constraint
// violation, covering both SQLite and PostgreSQL phrasing.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/coilworks/hvacpilot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanUser scans a User from a single sql.Row.
func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	var subscriptionID sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &subscriptionID, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user failed: %w", err)
	}
	u.SubscriptionID = subscriptionID.String
	return u, nil
}

// scanManual scans a Manual from sql.Rows.
func scanManual(rows *sql.Rows) (models.Manual, error) {
	var m models.Manual
	var subcategory, description, uploadedBy sql.NullString
	err := rows.Scan(
		&m.ID, &m.Title, &m.Category, &subcategory, &description,
		&m.FileName, &m.ObjectKey, &m.FileType, &m.FileSize, &m.IsPublic, &uploadedBy,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan manual failed: %w", err)
	}
	m.Subcategory = subcategory.String
	m.Description = description.String
	m.UploadedBy = uploadedBy.String
	return m, nil
}

// scanManualRow scans a Manual from a single sql.Row.
func scanManualRow(row *sql.Row) (models.Manual, error) {
	var m models.Manual
	var subcategory, description, uploadedBy sql.NullString
	err := row.Scan(
		&m.ID, &m.Title, &m.Category, &subcategory, &description,
		&m.FileName, &m.ObjectKey, &m.FileType, &m.FileSize, &m.IsPublic, &uploadedBy,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.Manual{}, ErrManualNotFound
	}
	if err != nil {
		return models.Manual{}, fmt.Errorf("scan manual failed: %w", err)
	}
	m.Subcategory = subcategory.String
	m.Description = description.String
	m.UploadedBy = uploadedBy.String
	return m, nil
}

// scanDiagnosisRecord scans a DiagnosisRecord from sql.Rows.
func scanDiagnosisRecord(rows *sql.Rows) (models.DiagnosisRecord, error) {
	var rec models.DiagnosisRecord
	var userID, resolvedBy sql.NullString
	err := rows.Scan(&rec.ID, &userID, &rec.System, &rec.Category, &rec.Title, &rec.AIPowered, &resolvedBy, &rec.CreatedAt)
	if err != nil {
		return rec, fmt.Errorf("scan diagnosis record failed: %w", err)
	}
	rec.UserID = userID.String
	rec.ResolvedBy = resolvedBy.String
	return rec, nil
}

// Package models defines account, manual, and billing types.
package models

import (
	"errors"
	"strings"
	"time"
)

// Error variables for account and manual validation.
var (
	ErrMissingEmail       = errors.New("email is required")
	ErrInvalidEmail       = errors.New("email is not valid")
	ErrMissingUsername    = errors.New("username is required")
	ErrMissingPassword    = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrMissingManualTitle = errors.New("manual title is required")
	ErrMissingManualFile  = errors.New("manual file is required")
)

// MinPasswordLength defines the minimum accepted password length.
const MinPasswordLength = 8

// User represents a registered account. PasswordHash is never serialized.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks registration requirements.
func (r *RegisterRequest) Validate() error {
	if r.Username == "" {
		return ErrMissingUsername
	}
	if r.Email == "" {
		return ErrMissingEmail
	}
	if !strings.Contains(r.Email, "@") {
		return ErrInvalidEmail
	}
	if r.Password == "" {
		return ErrMissingPassword
	}
	if len(r.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// LoginRequest is the payload for authenticating.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair carries an access token and its refresh companion.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Manual represents stored reference documentation for a piece of equipment.
type Manual struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Description string    `json:"description,omitempty"`
	FileName    string    `json:"file_name"`
	ObjectKey   string    `json:"object_key"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	IsPublic    bool      `json:"is_public"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ManualSearchResult is one scored hit from a manual content search.
type ManualSearchResult struct {
	Manual   Manual   `json:"manual"`
	Score    int      `json:"score"`
	Snippets []string `json:"snippets,omitempty"`
}

// SubscriptionEvent is a generically recorded billing webhook event linking a
// subscription id to a user. Provider payload details are not modeled.
type SubscriptionEvent struct {
	ID             string    `json:"id"`
	EventType      string    `json:"event_type"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

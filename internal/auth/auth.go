// Package auth implements account registration, login, and the token scheme
// used by the API: short-lived access tokens silently refreshed from a
// longer-lived refresh token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/coilworks/hvacpilot/internal/models"
	"github.com/coilworks/hvacpilot/internal/store"
)

// Token lifetimes. Access tokens are short-lived; the refresh token lets
// clients rotate a fresh pair without re-entering credentials.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Auth errors surfaced to the API layer.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Claims is the JWT payload carried by both access and refresh tokens.
type Claims struct {
	UserID  string `json:"user_id"`
	Refresh bool   `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// Opts holds configuration for the auth service.
type Opts struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Option configures the auth service.
type Option func(*Opts)

// WithSecret sets the JWT signing secret.
func WithSecret(secret string) Option {
	return func(o *Opts) { o.Secret = secret }
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(o *Opts) { o.AccessTTL = d }
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(d time.Duration) Option {
	return func(o *Opts) { o.RefreshTTL = d }
}

// Service provides account and token operations backed by a store.
type Service struct {
	store      store.Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates an auth service. The signing secret falls back to the
// JWT_SECRET environment variable and is required.
func NewService(st store.Store, opts ...Option) (*Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Secret == "" {
		cfg.Secret = os.Getenv("JWT_SECRET")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}
	// Zero means default. Negative TTLs are honored so already-expired
	// tokens can be minted.
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	slog.Debug("Auth service initialized", "access_ttl", cfg.AccessTTL, "refresh_ttl", cfg.RefreshTTL)
	return &Service{
		store:      st,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// Register creates a new account and returns the user with a token pair.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.User, models.TokenPair, error) {
	if err := req.Validate(); err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Auth Register bcrypt failed", "error", err)
		return models.User{}, models.TokenPair{}, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		slog.Warn("Auth Register create user failed", "error", err, "email", req.Email)
		return models.User{}, models.TokenPair{}, err
	}
	pair, err := s.IssueTokens(u.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	slog.Info("user registered", "user", u.ID)
	return u, pair, nil
}

// Login verifies credentials and returns the user with a fresh token pair.
// Unknown email and wrong password collapse into the same error.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.User, models.TokenPair, error) {
	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return models.User{}, models.TokenPair{}, ErrInvalidCredentials
		}
		return models.User{}, models.TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("Auth Login password mismatch", "user", u.ID)
		return models.User{}, models.TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.IssueTokens(u.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	slog.Info("user logged in", "user", u.ID)
	return u, pair, nil
}

// IssueTokens signs a fresh access/refresh pair for a user.
func (s *Service) IssueTokens(userID string) (models.TokenPair, error) {
	access, err := s.sign(userID, false, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.sign(userID, true, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token and returns the subject user id.
func (s *Service) VerifyAccess(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Refresh {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// Refresh validates a refresh token and rotates a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.User, models.TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	if !claims.Refresh {
		return models.User{}, models.TokenPair{}, ErrInvalidToken
	}
	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return models.User{}, models.TokenPair{}, ErrInvalidToken
		}
		return models.User{}, models.TokenPair{}, err
	}
	pair, err := s.IssueTokens(u.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	slog.Debug("token pair rotated", "user", u.ID)
	return u, pair, nil
}

func (s *Service) sign(userID string, refresh bool, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:  userID,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		slog.Error("Auth token signing failed", "error", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Package api provides account and authentication handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coilworks/hvacpilot/internal/auth"
	"github.com/coilworks/hvacpilot/internal/models"
	"github.com/coilworks/hvacpilot/internal/store"
)

// Token headers used by the client: the access token travels in AuthHeader,
// the refresh token in RefreshHeader. When an expired access token is
// silently refreshed, the rotated pair is returned on the same headers.
const (
	AuthHeader    = "x-auth-token"
	RefreshHeader = "x-refresh-token"
)

type contextKey string

const userIDKey contextKey = "userID"

// registerHandler handles POST /auth/register.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.auth == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Accounts are not enabled"))
		return
	}
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.registerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	user, pair, err := s.auth.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeJSONResponse(w, http.StatusConflict, models.Error("Email already registered"))
			return
		}
		slog.Warn("Server.registerHandler: registration rejected", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	s.setTokenHeaders(w, pair)
	writeJSONResponse(w, http.StatusCreated, models.Success(user))
}

// loginHandler handles POST /auth/login.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.auth == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Accounts are not enabled"))
		return
	}
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.loginHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	user, pair, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid email or password"))
			return
		}
		slog.Error("Server.loginHandler: login failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	s.setTokenHeaders(w, pair)
	writeJSONResponse(w, http.StatusOK, models.Success(user))
}

// meHandler handles GET /auth/me.
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	user, err := s.st.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Unknown account"))
			return
		}
		slog.Error("Server.meHandler: lookup failed", "error", err, "user", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(user))
}

// requireAuth wraps a handler with access token verification. An expired
// access token accompanied by a valid refresh token is silently refreshed:
// the request proceeds and the rotated pair is set on the response headers.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Accounts are not enabled"))
			return
		}
		token := r.Header.Get(AuthHeader)
		if token == "" {
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Authentication required"))
			return
		}
		userID, err := s.auth.VerifyAccess(token)
		if err == nil {
			next(w, r.WithContext(withUserID(r.Context(), userID)))
			return
		}
		if errors.Is(err, auth.ErrTokenExpired) {
			refresh := r.Header.Get(RefreshHeader)
			if refresh != "" {
				user, pair, refreshErr := s.auth.Refresh(r.Context(), refresh)
				if refreshErr == nil {
					slog.Debug("Server.requireAuth: access token silently refreshed", "user", user.ID)
					s.setTokenHeaders(w, pair)
					next(w, r.WithContext(withUserID(r.Context(), user.ID)))
					return
				}
				slog.Warn("Server.requireAuth: refresh failed", "error", refreshErr)
			}
		}
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid or expired token"))
	}
}

// optionalUserID extracts the user id from a valid access token if one was
// sent; anonymous requests return the empty string.
func (s *Server) optionalUserID(r *http.Request) string {
	if s.auth == nil {
		return ""
	}
	token := r.Header.Get(AuthHeader)
	if token == "" {
		return ""
	}
	userID, err := s.auth.VerifyAccess(token)
	if err != nil {
		return ""
	}
	return userID
}

func (s *Server) setTokenHeaders(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(AuthHeader, pair.AccessToken)
	w.Header().Set(RefreshHeader, pair.RefreshToken)
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

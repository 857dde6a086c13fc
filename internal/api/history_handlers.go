// Package api provides diagnosis history and billing webhook handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coilworks/hvacpilot/internal/models"
)

// DefaultHistoryLimit caps the number of records returned by GET /history.
const DefaultHistoryLimit = 50

// historyHandler handles GET /history for the authenticated user.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.st.GetDiagnosisHistory(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Server.historyHandler: query failed", "error", err, "user", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load diagnosis history"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

// billingWebhookRequest is the minimal event shape accepted from the billing
// provider. Payload details beyond these fields are ignored.
type billingWebhookRequest struct {
	EventType      string `json:"event_type"`
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id,omitempty"`
}

// billingWebhookHandler handles POST /billing/webhook. Events are recorded
// generically; activation and cancellation update the user's subscription.
func (s *Server) billingWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req billingWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.billingWebhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.EventType == "" || req.SubscriptionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("event_type and subscription_id are required"))
		return
	}

	ev := models.SubscriptionEvent{
		ID:             uuid.New().String(),
		EventType:      req.EventType,
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := s.st.AddSubscriptionEvent(r.Context(), ev); err != nil {
		slog.Error("Server.billingWebhookHandler: record failed", "error", err, "event", req.EventType)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record event"))
		return
	}

	if req.UserID != "" {
		switch req.EventType {
		case "subscription.activated":
			if err := s.st.UpdateUserSubscription(r.Context(), req.UserID, req.SubscriptionID); err != nil {
				slog.Error("Server.billingWebhookHandler: subscription update failed", "error", err, "user", req.UserID)
			}
		case "subscription.cancelled":
			if err := s.st.UpdateUserSubscription(r.Context(), req.UserID, ""); err != nil {
				slog.Error("Server.billingWebhookHandler: subscription clear failed", "error", err, "user", req.UserID)
			}
		}
	}
	slog.Info("billing event recorded", "event", req.EventType, "subscription", req.SubscriptionID)
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}

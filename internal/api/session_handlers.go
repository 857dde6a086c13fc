// Package api provides diagnostic session handlers for hvacpilot endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coilworks/hvacpilot/internal/engine"
	"github.com/coilworks/hvacpilot/internal/models"
)

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := s.optionalUserID(r)
	state := s.manager.CreateSession(userID)
	slog.Debug("Server.createSessionHandler: session created", "session", state.SessionID, "authenticated", userID != "")
	writeJSONResponse(w, http.StatusCreated, models.Success(state))
}

// sessionStateHandler handles GET /sessions/{id}.
func (s *Server) sessionStateHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.State(r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// selectHandler handles POST /sessions/{id}/select.
func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.selectHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	state, err := s.manager.Select(r.PathValue("id"), req)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	slog.Debug("Server.selectHandler: selection applied", "session", state.SessionID, "system", req.System, "category", req.Category)
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// answerHandler handles POST /sessions/{id}/answer.
func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var answer models.StepAnswer
	if err := json.NewDecoder(r.Body).Decode(&answer); err != nil {
		slog.Warn("Server.answerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	state, err := s.manager.SubmitAnswer(r.PathValue("id"), answer)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// previousHandler handles POST /sessions/{id}/previous.
func (s *Server) previousHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Previous(r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// restartHandler handles POST /sessions/{id}/restart.
func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Restart(r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	slog.Debug("Server.restartHandler: session restarted", "session", state.SessionID)
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// diagnosisHandler handles GET /sessions/{id}/diagnosis. While an AI
// evaluation is outstanding it reports pending; clients poll.
func (s *Server) diagnosisHandler(w http.ResponseWriter, r *http.Request) {
	d, status, err := s.manager.Diagnosis(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNoDiagnosis) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("No diagnosis has been requested for this session"))
			return
		}
		s.writeSessionError(w, err)
		return
	}
	if status == models.DiagnosisStatusPending {
		writeJSONResponse(w, http.StatusAccepted, models.Pending("Diagnosis is being prepared"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(d))
}

// writeSessionError maps engine errors to HTTP responses.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, engine.ErrNoSelection):
		writeJSONResponse(w, http.StatusConflict, models.Error("Select a system and problem category first"))
	case errors.Is(err, models.ErrUnknownSystemType), errors.Is(err, models.ErrUnknownCategory):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	default:
		slog.Error("Server session operation failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coilworks/hvacpilot/internal/genai"
	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/models"
)

// Session boundary errors returned to the API layer. Everything else the
// engine can go wrong on is absorbed internally.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSelection     = errors.New("no system and problem category selected")
	ErrNoDiagnosis     = errors.New("diagnosis not available")
)

// HistoryRecorder persists completed diagnoses. Recording is best-effort; a
// storage failure never surfaces to the session.
type HistoryRecorder interface {
	AddDiagnosisRecord(ctx context.Context, rec models.DiagnosisRecord) error
}

// ManagerOpts holds configuration for the session manager.
type ManagerOpts struct {
	Diagnoser genai.Diagnoser
	History   HistoryRecorder
}

// ManagerOption configures the session manager.
type ManagerOption func(*ManagerOpts)

// WithDiagnoser wires the AI fallback client into diagnosis evaluation.
func WithDiagnoser(d genai.Diagnoser) ManagerOption {
	return func(o *ManagerOpts) { o.Diagnoser = d }
}

// WithHistory wires a recorder that persists completed diagnoses.
func WithHistory(h HistoryRecorder) ManagerOption {
	return func(o *ManagerOpts) { o.History = h }
}

// Manager owns all active sessions and serializes access to them. The
// knowledge snapshot is taken per operation through the provider func, so a
// live-reloaded knowledge base applies to new selections without touching
// sessions mid-flight.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	snapshot  func() *knowledge.Store
	evaluator *Evaluator
	history   HistoryRecorder
}

// NewManager creates a session manager backed by the given knowledge snapshot
// provider.
func NewManager(snapshot func() *knowledge.Store, opts ...ManagerOption) *Manager {
	var cfg ManagerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		snapshot:  snapshot,
		evaluator: NewEvaluator(cfg.Diagnoser),
		history:   cfg.History,
	}
}

// CreateSession starts an empty session with no selection. UserID may be empty
// for anonymous use.
func (m *Manager) CreateSession(userID string) models.EngineState {
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Responses: models.ResponseStore{},
		Status:    models.DiagnosisStatusNone,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	slog.Info("session created", "session", s.ID)
	return s.State()
}

// Select binds the session to a system and problem category, resolves the
// flow, and resets traversal state. Selecting with no matching flow (or a flow
// with no steps) completes the session immediately and triggers the AI-only
// diagnosis path; the state carries a notice explaining the jump.
func (m *Manager) Select(sessionID string, sel models.SelectionRequest) (models.EngineState, error) {
	if !models.IsValidSystemType(sel.System) {
		return models.EngineState{}, models.ErrUnknownSystemType
	}
	if !models.IsValidCategory(sel.Category) {
		return models.EngineState{}, models.ErrUnknownCategory
	}

	store := m.snapshot()
	resolved := ResolveFlow(store, sel.System, sel.Category)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.EngineState{}, ErrSessionNotFound
	}
	s.System = sel.System
	s.Category = sel.Category
	s.Flow = resolved.Flow
	s.Steps = resolved.Steps
	s.Index = 0
	s.Responses = models.ResponseStore{}
	s.Diagnosis = nil
	s.Status = models.DiagnosisStatusNone
	s.Notice = ""
	s.generation++

	if resolved.Skip {
		s.Notice = "No guided steps are available for this selection. Requesting a diagnosis directly."
		m.beginEvaluation(store, s)
	}
	slog.Info("session selection made", "session", s.ID, "system", sel.System, "category", sel.Category, "steps", len(s.Steps))
	return s.State(), nil
}

// SubmitAnswer records the current step's answer and advances the cursor.
// Completing the final step triggers diagnosis evaluation; submitting again
// after completion re-triggers it idempotently.
func (m *Manager) SubmitAnswer(sessionID string, answer models.StepAnswer) (models.EngineState, error) {
	store := m.snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.EngineState{}, ErrSessionNotFound
	}
	if !s.Selected() {
		return models.EngineState{}, ErrNoSelection
	}
	if s.Advance(answer) {
		m.beginEvaluation(store, s)
	}
	return s.State(), nil
}

// Previous moves the cursor back one step, preserving recorded responses.
func (m *Manager) Previous(sessionID string) (models.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.EngineState{}, ErrSessionNotFound
	}
	if !s.Selected() {
		return models.EngineState{}, ErrNoSelection
	}
	s.Retreat()
	return s.State(), nil
}

// Restart resets the session's traversal, responses, and diagnosis while
// keeping its selection. Any in-flight evaluation result is discarded.
func (m *Manager) Restart(sessionID string) (models.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.EngineState{}, ErrSessionNotFound
	}
	if !s.Selected() {
		return models.EngineState{}, ErrNoSelection
	}
	s.Restart()
	return s.State(), nil
}

// State returns the current boundary snapshot of a session.
func (m *Manager) State(sessionID string) (models.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.EngineState{}, ErrSessionNotFound
	}
	return s.State(), nil
}

// Diagnosis returns the session's diagnosis result. While an AI evaluation is
// outstanding the status is pending and the diagnosis is nil; before any
// evaluation was triggered it returns ErrNoDiagnosis.
func (m *Manager) Diagnosis(sessionID string) (*models.Diagnosis, models.DiagnosisStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	if s.Status == models.DiagnosisStatusNone {
		return nil, s.Status, ErrNoDiagnosis
	}
	return s.Diagnosis, s.Status, nil
}

// beginEvaluation runs diagnosis evaluation for a completed session. Rule
// evaluation is pure and fast, so it runs under the lock; the AI fallback is
// dispatched to a goroutine and its result is discarded if the session was
// restarted or reselected in the meantime. Caller must hold m.mu.
func (m *Manager) beginEvaluation(store *knowledge.Store, s *Session) {
	in := evalInput{
		SessionID: s.ID,
		System:    s.System,
		Category:  s.Category,
		Flow:      s.Flow,
		Steps:     s.Steps,
		Responses: s.Responses.Clone(),
	}

	if d, ok := m.evaluator.EvaluateRules(store, in); ok {
		s.Diagnosis = &d
		s.Status = models.DiagnosisStatusReady
		m.recordHistory(s, d)
		return
	}

	if s.Status == models.DiagnosisStatusPending {
		// One outstanding AI evaluation at a time.
		return
	}
	s.Status = models.DiagnosisStatusPending
	gen := s.generation
	go func() {
		d := m.evaluator.EvaluateAI(context.Background(), store, in)
		m.mu.Lock()
		defer m.mu.Unlock()
		cur, ok := m.sessions[in.SessionID]
		if !ok || cur.generation != gen {
			slog.Debug("discarding stale diagnosis result", "session", in.SessionID)
			return
		}
		cur.Diagnosis = &d
		cur.Status = models.DiagnosisStatusReady
		m.recordHistory(cur, d)
	}()
}

// recordHistory persists the diagnosis if a recorder is configured. Failures
// are logged and swallowed. Caller must hold m.mu.
func (m *Manager) recordHistory(s *Session, d models.Diagnosis) {
	if m.history == nil {
		return
	}
	rec := models.DiagnosisRecord{
		ID:         uuid.New().String(),
		UserID:     s.UserID,
		System:     s.System,
		Category:   s.Category,
		Title:      d.Title,
		AIPowered:  d.AIPowered,
		CreatedAt:  time.Now().UTC(),
		ResolvedBy: d.RuleID,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.history.AddDiagnosisRecord(ctx, rec); err != nil {
		slog.Error("failed to record diagnosis history", "error", err, "session", s.ID)
	}
}

package engine

import (
	"log/slog"

	"github.com/coilworks/hvacpilot/internal/models"
)

// Session is the per-user traversal state of a resolved flow: the step cursor,
// the accumulated responses, and the evaluation status. Sessions are owned by
// the Manager, which serializes all access; a Session itself is not safe for
// concurrent use.
type Session struct {
	ID       string
	UserID   string
	System   models.SystemType
	Category models.ProblemCategory

	// Flow is nil until a selection is made, and stays nil when the
	// knowledge store had no matching flow (the AI-only path).
	Flow  *models.FlowDefinition
	Steps []models.StepDefinition
	Index int

	Responses models.ResponseStore

	Diagnosis *models.Diagnosis
	Status    models.DiagnosisStatus
	Notice    string

	// generation increments on every selection and restart; in-flight
	// evaluation results from an older generation are discarded.
	generation uint64
}

// Selected reports whether a system/category selection has been made.
func (s *Session) Selected() bool {
	return s.System != "" && s.Category != ""
}

// Complete reports whether the cursor has moved past the final step. A
// session with zero steps is complete immediately after selection.
func (s *Session) Complete() bool {
	return s.Selected() && s.Index >= len(s.Steps)
}

// CurrentStep returns the step under the cursor, or nil once complete.
func (s *Session) CurrentStep() *models.StepDefinition {
	if s.Index < 0 || s.Index >= len(s.Steps) {
		return nil
	}
	return &s.Steps[s.Index]
}

// Progress derives the fraction (index+1)/N in [0, 1]: the first of four steps
// reports 0.25, the last reports 1. Sessions with no steps report 1 once
// selected: there is nothing left to traverse.
func (s *Session) Progress() float64 {
	if len(s.Steps) == 0 {
		if s.Selected() {
			return 1
		}
		return 0
	}
	if s.Index >= len(s.Steps) {
		return 1
	}
	return float64(s.Index+1) / float64(len(s.Steps))
}

// capture records the answer for the step under the cursor. Question steps
// store the selected option value under the normalized question key; checklist
// steps store the checked ids under the step-index key, writing an empty list
// when nothing was checked so a visited checklist is distinguishable from an
// unvisited one. An empty question answer records nothing.
func (s *Session) capture(answer models.StepAnswer) {
	step := s.CurrentStep()
	if step == nil {
		return
	}
	switch step.Content.Type {
	case models.StepContentQuestion:
		if answer.Value == "" {
			return
		}
		s.Responses.SetAnswer(step.Content.Question, answer.Value)
	case models.StepContentChecklist:
		s.Responses.SetChecklist(s.Index, answer.Checked)
	}
}

// Advance records the answer for the current step and moves the cursor
// forward. It reports whether the session is complete afterwards, which is the
// caller's cue to trigger diagnosis evaluation. Advancing an already-complete
// session records nothing and leaves the cursor alone, but still reports
// completion so evaluation can be re-triggered idempotently.
func (s *Session) Advance(answer models.StepAnswer) bool {
	if s.Complete() {
		slog.Debug("engine session advance past end", "session", s.ID, "index", s.Index)
		return true
	}
	s.capture(answer)
	s.Index++
	slog.Debug("engine session advanced", "session", s.ID, "index", s.Index, "total", len(s.Steps))
	return s.Complete()
}

// Retreat moves the cursor back one step, flooring at the first step.
// Previously recorded responses are preserved; the user sees their earlier
// answer when revisiting and overwrites it by advancing again.
func (s *Session) Retreat() {
	if s.Index > 0 {
		s.Index--
	}
	slog.Debug("engine session retreated", "session", s.ID, "index", s.Index)
}

// Restart clears the cursor, all responses, and any diagnosis, keeping the
// current system/category selection and resolved flow.
func (s *Session) Restart() {
	s.Index = 0
	s.Responses = models.ResponseStore{}
	s.Diagnosis = nil
	s.Status = models.DiagnosisStatusNone
	s.Notice = ""
	s.generation++
	slog.Debug("engine session restarted", "session", s.ID, "generation", s.generation)
}

// State builds the boundary snapshot returned by every session operation.
func (s *Session) State() models.EngineState {
	return models.EngineState{
		SessionID:       s.ID,
		System:          s.System,
		Category:        s.Category,
		StepIndex:       s.Index,
		TotalSteps:      len(s.Steps),
		Progress:        s.Progress(),
		Complete:        s.Complete(),
		Step:            s.CurrentStep(),
		DiagnosisStatus: s.Status,
		Notice:          s.Notice,
	}
}

// Package models defines session boundary types for the diagnostic engine.
package models

import "time"

// DiagnosisStatus reports whether a session's diagnosis is available yet.
type DiagnosisStatus string

const (
	// DiagnosisStatusNone indicates evaluation has not been triggered.
	DiagnosisStatusNone DiagnosisStatus = "none"
	// DiagnosisStatusPending indicates an evaluation is outstanding.
	DiagnosisStatusPending DiagnosisStatus = "pending"
	// DiagnosisStatusReady indicates a diagnosis result is available.
	DiagnosisStatusReady DiagnosisStatus = "ready"
)

// EngineState is the engine's view of a session returned by every session
// boundary operation. Progress is a derived value, only meaningful while the
// flow has at least one step.
type EngineState struct {
	SessionID       string          `json:"session_id"`
	System          SystemType      `json:"system,omitempty"`
	Category        ProblemCategory `json:"category,omitempty"`
	StepIndex       int             `json:"step_index"`
	TotalSteps      int             `json:"total_steps"`
	Progress        float64         `json:"progress"`
	Complete        bool            `json:"complete"`
	Step            *StepDefinition `json:"step,omitempty"`
	DiagnosisStatus DiagnosisStatus `json:"diagnosis_status"`
	Notice          string          `json:"notice,omitempty"`
}

// StepAnswer is the payload for submitting the current step's response.
// Value carries a question selection; Checked carries checklist item ids.
type StepAnswer struct {
	Value   string   `json:"value,omitempty"`
	Checked []string `json:"checked,omitempty"`
}

// SelectionRequest is the payload for selecting a system and problem category.
type SelectionRequest struct {
	System   SystemType      `json:"system"`
	Category ProblemCategory `json:"category"`
}

// DiagnosisRecord is a persisted entry of a completed diagnosis for a user.
type DiagnosisRecord struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	System     SystemType      `json:"system"`
	Category   ProblemCategory `json:"category"`
	Title      string          `json:"title"`
	AIPowered  bool            `json:"ai_powered"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedBy string          `json:"resolved_by,omitempty"` // matching rule id, if any
}

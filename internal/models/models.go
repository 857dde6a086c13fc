// Package models defines the core data structures for hvacpilot.
//
// It includes the flow and diagnosis types shared by the knowledge store,
// the diagnostic engine, and the API layer.
package models

import (
	"errors"
	"strings"
)

// SystemType identifies an equipment category a user can troubleshoot.
type SystemType string

const (
	SystemCentralAir SystemType = "central-air"
	SystemHeatPump   SystemType = "heat-pump"
	SystemFurnace    SystemType = "furnace"
	SystemBoiler     SystemType = "boiler"
	SystemWindowUnit SystemType = "window-unit"
	SystemMiniSplit  SystemType = "mini-split"
)

// ProblemCategory identifies the class of problem being diagnosed.
type ProblemCategory string

const (
	CategoryCooling    ProblemCategory = "cooling"
	CategoryHeating    ProblemCategory = "heating"
	CategoryAirflow    ProblemCategory = "airflow"
	CategoryElectrical ProblemCategory = "electrical"
)

// StepContentType defines how a diagnostic step collects input.
type StepContentType string

const (
	// StepContentChecklist presents independently checkable items.
	StepContentChecklist StepContentType = "checklist"
	// StepContentQuestion presents a single-choice question.
	StepContentQuestion StepContentType = "question"
)

// Validation constants for knowledge document input.
const (
	// MaxStepOptionsCount defines the maximum number of options on a question step.
	MaxStepOptionsCount = 10
	// MinStepOptionsCount defines the minimum number of options on a question step.
	MinStepOptionsCount = 2
	// MaxChecklistItemsCount defines the maximum number of items on a checklist step.
	MaxChecklistItemsCount = 20
)

// Error variables for better error handling and testability.
var (
	ErrUnknownSystemType    = errors.New("unknown system type")
	ErrUnknownCategory      = errors.New("unknown problem category")
	ErrInvalidStepContent   = errors.New("invalid step content type")
	ErrMissingQuestion      = errors.New("question text is required for question steps")
	ErrMissingOptions       = errors.New("options are required for question steps")
	ErrInsufficientOptions  = errors.New("insufficient question options")
	ErrTooManyOptions       = errors.New("too many question options")
	ErrMissingItems         = errors.New("items are required for checklist steps")
	ErrTooManyItems         = errors.New("too many checklist items")
	ErrEmptyOptionValue     = errors.New("option value cannot be empty")
	ErrMissingRuleID        = errors.New("diagnosis rule id is required")
	ErrMissingRuleTitle     = errors.New("diagnosis rule title is required")
	ErrMissingFlowTitle     = errors.New("flow title is required")
	ErrMissingSystemTypeSet = errors.New("flow must declare at least one applicable system type")
)

// IsValidSystemType checks if the given system type is supported.
func IsValidSystemType(st SystemType) bool {
	switch st {
	case SystemCentralAir, SystemHeatPump, SystemFurnace, SystemBoiler, SystemWindowUnit, SystemMiniSplit:
		return true
	default:
		return false
	}
}

// IsValidCategory checks if the given problem category is supported.
func IsValidCategory(pc ProblemCategory) bool {
	switch pc {
	case CategoryCooling, CategoryHeating, CategoryAirflow, CategoryElectrical:
		return true
	default:
		return false
	}
}

// StepOption represents one selectable answer on a question step.
type StepOption struct {
	Value string `json:"value"` // stored response value when selected
	Label string `json:"label"` // text shown to the user
}

// StepContent is the payload of a diagnostic step. The variant is fixed at
// creation: a checklist carries Items, a question carries Question and Options.
type StepContent struct {
	Type     StepContentType `json:"type"`
	Question string          `json:"question,omitempty"`
	Options  []StepOption    `json:"options,omitempty"`
	Items    []string        `json:"items,omitempty"`
}

// StepDefinition is one unit of a guided troubleshooting flow.
type StepDefinition struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Content     StepContent `json:"content"`
}

// Validate performs validation on a step definition's content payload.
func (s *StepDefinition) Validate() error {
	switch s.Content.Type {
	case StepContentQuestion:
		if s.Content.Question == "" {
			return ErrMissingQuestion
		}
		if len(s.Content.Options) == 0 {
			return ErrMissingOptions
		}
		if len(s.Content.Options) < MinStepOptionsCount {
			return ErrInsufficientOptions
		}
		if len(s.Content.Options) > MaxStepOptionsCount {
			return ErrTooManyOptions
		}
		for _, opt := range s.Content.Options {
			if opt.Value == "" {
				return ErrEmptyOptionValue
			}
		}
		return nil
	case StepContentChecklist:
		if len(s.Content.Items) == 0 {
			return ErrMissingItems
		}
		if len(s.Content.Items) > MaxChecklistItemsCount {
			return ErrTooManyItems
		}
		return nil
	default:
		return ErrInvalidStepContent
	}
}

// DiagnosisRule is a predicate-guarded remediation template. Condition is an
// expression over the accumulated responses map; an empty condition always
// matches. Rules are evaluated in declaration order and the first match wins.
type DiagnosisRule struct {
	ID          string   `json:"id"`
	Condition   string   `json:"condition,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps,omitempty"`
}

// Validate checks structural requirements of a diagnosis rule.
func (r *DiagnosisRule) Validate() error {
	if r.ID == "" {
		return ErrMissingRuleID
	}
	if r.Title == "" {
		return ErrMissingRuleTitle
	}
	return nil
}

// FlowDefinition associates a system-type applicability set with an ordered
// step sequence and an ordered list of diagnosis rules. Steps may be full step
// definitions or plain textual prompts (StepPrompts); the resolver synthesizes
// question steps for the latter. Step order defines traversal order and is
// never reordered at runtime.
type FlowDefinition struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	SystemTypes    []string         `json:"system_types"` // display names, or "All"
	Steps          []StepDefinition `json:"steps,omitempty"`
	StepPrompts    []string         `json:"step_prompts,omitempty"`
	Rules          []DiagnosisRule  `json:"rules,omitempty"`
	SafetyWarnings []string         `json:"safety_warnings,omitempty"`
}

// AppliesToAll reports whether the flow declares the wildcard "All" marker.
func (f *FlowDefinition) AppliesToAll() bool {
	for _, st := range f.SystemTypes {
		if strings.EqualFold(st, "All") {
			return true
		}
	}
	return false
}

// Validate checks structural requirements of a flow definition.
func (f *FlowDefinition) Validate() error {
	if f.Title == "" {
		return ErrMissingFlowTitle
	}
	if len(f.SystemTypes) == 0 {
		return ErrMissingSystemTypeSet
	}
	for i := range f.Steps {
		if err := f.Steps[i].Validate(); err != nil {
			return err
		}
	}
	for i := range f.Rules {
		if err := f.Rules[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Diagnosis is the final output of an evaluation. Immutable once produced;
// replaced wholesale on re-diagnosis.
type Diagnosis struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Steps         []string `json:"steps"`
	SafetyWarning string   `json:"safety_warning,omitempty"`
	AIPowered     bool     `json:"ai_powered"`
	RuleID        string   `json:"rule_id,omitempty"`
}

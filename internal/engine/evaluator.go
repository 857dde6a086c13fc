package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/coilworks/hvacpilot/internal/genai"
	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/models"
)

// Fixed content of the two AI-path diagnosis results.
const (
	aiDiagnosisTitle = "AI-Powered Diagnosis"

	failedDiagnosisTitle       = "Diagnosis Failed"
	failedDiagnosisDescription = "We could not get a diagnosis from our AI assistant at this time. " +
		"Please check your connection or try again later."
	failedDiagnosisStep          = "You can also try our reference library for manual troubleshooting guides."
	failedDiagnosisSafetyWarning = "Always prioritize safety. If you are unsure, please contact a " +
		"certified HVAC professional."
)

// Evaluator turns a completed session's responses into a Diagnosis: first by
// the flow's declared rules, then by the AI fallback. Evaluation never fails;
// every error path degrades to a fixed failure diagnosis.
type Evaluator struct {
	ai genai.Diagnoser
}

// NewEvaluator creates an evaluator. The diagnoser may be nil, in which case
// the AI path always yields the failure diagnosis.
func NewEvaluator(ai genai.Diagnoser) *Evaluator {
	return &Evaluator{ai: ai}
}

// evalInput is an immutable snapshot of the session fields evaluation reads,
// taken under the manager lock so the AI path can run without it.
type evalInput struct {
	SessionID string
	System    models.SystemType
	Category  models.ProblemCategory
	Flow      *models.FlowDefinition
	Steps     []models.StepDefinition
	Responses models.ResponseStore
}

// EvaluateRules runs the flow's rules in declaration order against the
// responses snapshot and returns the first match. Predicate errors are logged
// and treated as non-matches; a broken rule never takes down the session.
func (e *Evaluator) EvaluateRules(store *knowledge.Store, in evalInput) (models.Diagnosis, bool) {
	if in.Flow == nil {
		return models.Diagnosis{}, false
	}
	for _, cr := range store.CompiledRules(in.Flow.ID) {
		matched, err := cr.Matches(in.Responses)
		if err != nil {
			slog.Error("rule evaluation failed, skipping rule", "error", err, "rule", cr.Rule.ID, "flow", in.Flow.ID)
			continue
		}
		if !matched {
			continue
		}
		slog.Debug("diagnosis rule matched", "rule", cr.Rule.ID, "flow", in.Flow.ID, "session", in.SessionID)
		return models.Diagnosis{
			Title:         cr.Rule.Title,
			Description:   cr.Rule.Description,
			Steps:         cr.Rule.Steps,
			SafetyWarning: strings.Join(in.Flow.SafetyWarnings, "\n"),
			RuleID:        cr.Rule.ID,
		}, true
	}
	return models.Diagnosis{}, false
}

// EvaluateAI asks the AI fallback for a diagnosis. Any failure, including a
// missing client, yields the fixed failure diagnosis rather than an error.
func (e *Evaluator) EvaluateAI(ctx context.Context, store *knowledge.Store, in evalInput) models.Diagnosis {
	if e.ai == nil {
		slog.Warn("AI fallback requested but no diagnoser configured", "session", in.SessionID)
		return failedDiagnosis()
	}
	req := genai.DiagnosticRequest{
		IssueDescription: fmt.Sprintf("The user is experiencing a problem with %s in their %s.",
			strings.ToLower(store.CategoryDisplayName(in.Category)), store.SystemDisplayName(in.System)),
		SystemTypeDisplayName: store.SystemDisplayName(in.System),
		Symptoms:              buildSymptoms(in.Steps, in.Responses),
	}
	resp, err := e.ai.Diagnose(ctx, req)
	if err != nil {
		slog.Error("AI diagnosis failed, returning fallback result", "error", err, "session", in.SessionID)
		return failedDiagnosis()
	}
	return models.Diagnosis{
		Title:         aiDiagnosisTitle,
		Description:   resp.Text,
		Steps:         []string{},
		SafetyWarning: resp.SafetyWarning,
		AIPowered:     true,
	}
}

// failedDiagnosis is the result shown when the AI fallback cannot be reached.
func failedDiagnosis() models.Diagnosis {
	return models.Diagnosis{
		Title:         failedDiagnosisTitle,
		Description:   failedDiagnosisDescription,
		Steps:         []string{failedDiagnosisStep},
		SafetyWarning: failedDiagnosisSafetyWarning,
	}
}

// buildSymptoms flattens the response store into human-readable symptom lines
// by reverse-mapping each key to its originating step. Steps are walked in
// traversal order so the list is deterministic; keys no step accounts for are
// appended last in sorted order with the key de-hyphenated as the label.
func buildSymptoms(steps []models.StepDefinition, responses models.ResponseStore) []string {
	var symptoms []string
	covered := make(map[string]bool, len(responses))

	for i, step := range steps {
		switch step.Content.Type {
		case models.StepContentQuestion:
			key := models.QuestionKey(step.Content.Question)
			v, ok := responses[key]
			if !ok {
				continue
			}
			covered[key] = true
			symptoms = append(symptoms, fmt.Sprintf("%s: %s", step.Content.Question, formatResponse(v)))
		case models.StepContentChecklist:
			key := models.ChecklistKey(i)
			v, ok := responses[key]
			if !ok {
				continue
			}
			covered[key] = true
			symptoms = append(symptoms, fmt.Sprintf("%s: %s", step.Title, formatResponse(v)))
		}
	}

	var leftover []string
	for key := range responses {
		if !covered[key] {
			leftover = append(leftover, key)
		}
	}
	sort.Strings(leftover)
	for _, key := range leftover {
		symptoms = append(symptoms, fmt.Sprintf("%s: %s", models.DehyphenateKey(key), formatResponse(responses[key])))
	}
	return symptoms
}

// formatResponse renders a stored response value for the symptom list.
func formatResponse(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) == 0 {
			return "none"
		}
		return strings.Join(val, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

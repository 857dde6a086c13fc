// Package knowledge holds the static troubleshooting knowledge base.
//
// A Store is an immutable snapshot loaded once from a structured document and
// shared read-only by all concurrent sessions; no locking is required. Flow
// lookup, system/category enumeration, and the reference library are all
// served from the snapshot.
package knowledge

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/coilworks/hvacpilot/internal/models"
)

// SystemInfo pairs a system type with its display name.
type SystemInfo struct {
	ID   models.SystemType `json:"id"`
	Name string            `json:"name"`
}

// CategoryInfo pairs a problem category with its display name.
type CategoryInfo struct {
	ID   models.ProblemCategory `json:"id"`
	Name string                 `json:"name"`
}

// Store is the loaded knowledge snapshot. It is never mutated after load.
type Store struct {
	flows      []models.FlowDefinition
	systems    []SystemInfo
	categories []CategoryInfo
	library    []LibraryCategory

	systemNames   map[models.SystemType]string
	categoryNames map[models.ProblemCategory]string
	compiled      map[string][]CompiledRule // flow ID -> rules in declaration order
}

// CompiledRule pairs a diagnosis rule with its compiled predicate. A nil
// program means the condition was empty and the rule always matches.
type CompiledRule struct {
	Rule    models.DiagnosisRule
	program *vm.Program
}

// Matches evaluates the rule predicate against the accumulated responses.
// Evaluation is pure: the responses map is passed as data and never mutated.
func (cr CompiledRule) Matches(responses models.ResponseStore) (bool, error) {
	if cr.program == nil {
		return true, nil
	}
	out, err := expr.Run(cr.program, ruleEnv(responses))
	if err != nil {
		return false, fmt.Errorf("eval condition for rule %s: %w", cr.Rule.ID, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition for rule %s did not return bool (got %T)", cr.Rule.ID, out)
	}
	return result, nil
}

// ruleEnv builds the expression environment exposing the responses map.
func ruleEnv(responses models.ResponseStore) map[string]any {
	if responses == nil {
		responses = models.ResponseStore{}
	}
	return map[string]any{"responses": map[string]any(responses)}
}

// compileRule compiles a rule condition. An empty condition compiles to a nil
// program, meaning always true.
func compileRule(rule models.DiagnosisRule) (CompiledRule, error) {
	cond := strings.TrimSpace(rule.Condition)
	if cond == "" {
		return CompiledRule{Rule: rule}, nil
	}
	program, err := expr.Compile(cond, expr.Env(ruleEnv(nil)), expr.AsBool())
	if err != nil {
		return CompiledRule{}, fmt.Errorf("compile condition for rule %s: %w", rule.ID, err)
	}
	return CompiledRule{Rule: rule, program: program}, nil
}

// NormalizeSystemName lowercases a declared system display name and replaces
// spaces with hyphens so it can be compared against a SystemType tag.
func NormalizeSystemName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// FindFlow returns the first flow, in declaration order, whose title contains
// the category name (case-insensitive substring) and whose applicability set
// contains the wildcard "All" marker or the given system type after
// normalization. The boolean reports whether a flow was found; absence is not
// an error and routes the caller to the AI-only diagnosis path.
//
// First-match-wins over the substring title match is deliberate, documented
// behavior inherited from the flow catalog format.
func (s *Store) FindFlow(system models.SystemType, category models.ProblemCategory) (models.FlowDefinition, bool) {
	title := strings.ToLower(string(category))
	for _, f := range s.flows {
		if !strings.Contains(strings.ToLower(f.Title), title) {
			continue
		}
		if f.AppliesToAll() {
			slog.Debug("knowledge.FindFlow matched wildcard flow", "flow", f.ID, "system", system, "category", category)
			return f, true
		}
		for _, st := range f.SystemTypes {
			if NormalizeSystemName(st) == string(system) {
				slog.Debug("knowledge.FindFlow matched flow", "flow", f.ID, "system", system, "category", category)
				return f, true
			}
		}
	}
	slog.Debug("knowledge.FindFlow no match", "system", system, "category", category)
	return models.FlowDefinition{}, false
}

// CompiledRules returns the compiled rule set for a flow in declaration order.
// Flows without rules return nil; the evaluator treats that as no-rule-matched.
func (s *Store) CompiledRules(flowID string) []CompiledRule {
	return s.compiled[flowID]
}

// Flows returns all flow definitions in declaration order.
func (s *Store) Flows() []models.FlowDefinition {
	return s.flows
}

// SystemTypes returns the stable ordered system enumeration for UI population.
func (s *Store) SystemTypes() []SystemInfo {
	return s.systems
}

// Categories returns the stable ordered category enumeration for UI population.
func (s *Store) Categories() []CategoryInfo {
	return s.categories
}

// SystemDisplayName returns the display name for a system type, falling back
// to the raw tag for unknown systems.
func (s *Store) SystemDisplayName(st models.SystemType) string {
	if name, ok := s.systemNames[st]; ok {
		return name
	}
	return string(st)
}

// CategoryDisplayName returns the display name for a problem category, falling
// back to the raw tag for unknown categories.
func (s *Store) CategoryDisplayName(pc models.ProblemCategory) string {
	if name, ok := s.categoryNames[pc]; ok {
		return name
	}
	return string(pc)
}

// Library returns the reference library categories in declaration order.
func (s *Store) Library() []LibraryCategory {
	return s.library
}

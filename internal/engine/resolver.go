// Package engine implements the guided troubleshooting flow engine: flow
// resolution, the step sequencer state machine, response capture, and
// diagnosis evaluation with AI fallback.
package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/models"
)

// ResolvedFlow is the outcome of flow resolution: a concrete step sequence for
// the sequencer, or a decision to skip straight to diagnosis. Flow is nil when
// the knowledge store had no match.
type ResolvedFlow struct {
	Flow  *models.FlowDefinition
	Steps []models.StepDefinition
	Skip  bool
}

// ResolveFlow translates a system/category selection into a concrete step
// sequence. Flows whose steps are plain textual prompts get a synthesized
// question step per prompt, deterministically and order-preserving. No flow,
// or a flow with zero steps, yields a skip-to-diagnosis decision; the caller
// must route to the AI fallback without asking any step questions.
func ResolveFlow(store *knowledge.Store, system models.SystemType, category models.ProblemCategory) ResolvedFlow {
	flow, ok := store.FindFlow(system, category)
	if !ok {
		slog.Debug("engine.ResolveFlow no flow found", "system", system, "category", category)
		return ResolvedFlow{Skip: true}
	}

	steps := flow.Steps
	if len(steps) == 0 && len(flow.StepPrompts) > 0 {
		steps = synthesizeSteps(flow.StepPrompts)
	}
	if len(steps) == 0 {
		slog.Debug("engine.ResolveFlow matched empty flow", "flow", flow.ID, "system", system, "category", category)
		return ResolvedFlow{Flow: &flow, Skip: true}
	}
	slog.Debug("engine.ResolveFlow resolved", "flow", flow.ID, "steps", len(steps))
	return ResolvedFlow{Flow: &flow, Steps: steps}
}

// synthesizeSteps converts plain textual prompts into generic question steps.
func synthesizeSteps(prompts []string) []models.StepDefinition {
	steps := make([]models.StepDefinition, 0, len(prompts))
	for i, prompt := range prompts {
		lower := strings.ToLower(prompt)
		steps = append(steps, models.StepDefinition{
			Title:       fmt.Sprintf("Step %d: %s", i+1, prompt),
			Description: fmt.Sprintf("Let's check the %s.", lower),
			Icon:        "fas fa-search",
			Content: models.StepContent{
				Type:     models.StepContentQuestion,
				Question: fmt.Sprintf("Did you find any issues with the %s?", lower),
				Options: []models.StepOption{
					{Value: "yes", Label: "Yes, I see a problem"},
					{Value: "no", Label: "No, everything looks normal"},
					{Value: "unsure", Label: "I am not sure"},
				},
			},
		})
	}
	return steps
}

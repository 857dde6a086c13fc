package engine

import (
	"strings"
	"testing"

	"github.com/coilworks/hvacpilot/internal/models"
)

func TestResolveFlowReturnsDeclaredSteps(t *testing.T) {
	store := loadStore(t)
	resolved := ResolveFlow(store, models.SystemCentralAir, models.CategoryCooling)
	if resolved.Skip {
		t.Fatal("expected a resolved flow, got skip")
	}
	if resolved.Flow.ID != "central-air-cooling" {
		t.Fatalf("expected central-air-cooling, got %s", resolved.Flow.ID)
	}
	if len(resolved.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(resolved.Steps))
	}
}

func TestResolveFlowSynthesizesPromptSteps(t *testing.T) {
	store := loadStore(t)
	resolved := ResolveFlow(store, models.SystemHeatPump, models.CategoryCooling)
	if resolved.Skip {
		t.Fatal("expected a resolved flow, got skip")
	}
	if resolved.Flow.ID != "heat-pump-cooling" {
		t.Fatalf("expected heat-pump-cooling, got %s", resolved.Flow.ID)
	}
	if len(resolved.Steps) != 4 {
		t.Fatalf("expected 4 synthesized steps, got %d", len(resolved.Steps))
	}

	first := resolved.Steps[0]
	if first.Title != "Step 1: Thermostat cooling mode setting" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Content.Type != models.StepContentQuestion {
		t.Fatalf("expected question step, got %s", first.Content.Type)
	}
	if first.Content.Question != "Did you find any issues with the thermostat cooling mode setting?" {
		t.Errorf("unexpected question %q", first.Content.Question)
	}
	if len(first.Content.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(first.Content.Options))
	}
	values := []string{"yes", "no", "unsure"}
	for i, opt := range first.Content.Options {
		if opt.Value != values[i] {
			t.Errorf("option %d: expected value %q, got %q", i, values[i], opt.Value)
		}
	}
}

func TestResolveFlowSkipsWhenNoTitleMatches(t *testing.T) {
	store := loadStore(t)
	resolved := ResolveFlow(store, models.SystemCentralAir, models.CategoryElectrical)
	if !resolved.Skip {
		t.Fatal("expected skip-to-diagnosis for category with no matching flow title")
	}
	if resolved.Flow != nil {
		t.Errorf("expected nil flow, got %s", resolved.Flow.ID)
	}
}

func TestResolveFlowWildcardApplicability(t *testing.T) {
	store := loadStore(t)
	// Poor Airflow declares the "All" wildcard.
	resolved := ResolveFlow(store, models.SystemWindowUnit, models.CategoryAirflow)
	if resolved.Skip {
		t.Fatal("expected wildcard flow to resolve")
	}
	if resolved.Flow.ID != "poor-airflow" {
		t.Fatalf("expected poor-airflow, got %s", resolved.Flow.ID)
	}
	for _, step := range resolved.Steps {
		if !strings.HasPrefix(step.Title, "Step ") {
			t.Errorf("expected synthesized step title, got %q", step.Title)
		}
	}
}

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/coilworks/hvacpilot/internal/genai"
	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/models"
)

func loadStore(t *testing.T) *knowledge.Store {
	t.Helper()
	st, err := knowledge.LoadDefault()
	if err != nil {
		t.Fatalf("loading default knowledge: %v", err)
	}
	return st
}

type fakeDiagnoser struct {
	mu      sync.Mutex
	calls   int
	lastReq genai.DiagnosticRequest
	resp    genai.DiagnosticResponse
	err     error
	block   chan struct{} // when non-nil, Diagnose waits for close
}

func (f *fakeDiagnoser) Diagnose(ctx context.Context, req genai.DiagnosticRequest) (genai.DiagnosticResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	block := f.block
	resp, err := f.resp, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeDiagnoser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeDiagnoser) lastRequest() genai.DiagnosticRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func centralAirInput(t *testing.T, store *knowledge.Store, responses models.ResponseStore) evalInput {
	t.Helper()
	resolved := ResolveFlow(store, models.SystemCentralAir, models.CategoryCooling)
	if resolved.Skip || resolved.Flow == nil {
		t.Fatal("expected central-air cooling flow to resolve")
	}
	return evalInput{
		SessionID: "test",
		System:    models.SystemCentralAir,
		Category:  models.CategoryCooling,
		Flow:      resolved.Flow,
		Steps:     resolved.Steps,
		Responses: responses,
	}
}

func TestDirtyFilterRuleMatches(t *testing.T) {
	store := loadStore(t)
	responses := models.ResponseStore{}
	responses.SetAnswer("What is the condition of your air filter?", "very-dirty")

	ev := NewEvaluator(nil)
	in := centralAirInput(t, store, responses)
	d, ok := ev.EvaluateRules(store, in)
	if !ok {
		t.Fatal("expected a rule match")
	}
	if d.RuleID != "dirty-filter-blockage" {
		t.Fatalf("expected dirty-filter-blockage, got %s", d.RuleID)
	}
	if d.AIPowered {
		t.Error("rule-sourced diagnosis must not be marked AI powered")
	}
	if d.Title != "Severe Air Filter Blockage" {
		t.Errorf("unexpected title %q", d.Title)
	}
}

func TestRuleEvaluationIsDeterministic(t *testing.T) {
	store := loadStore(t)
	responses := models.ResponseStore{}
	// Satisfies both dirty-filter-blockage and refrigerant-leak; declaration
	// order must always pick the filter rule.
	responses.SetAnswer("What is the condition of your air filter?", "unknown")
	responses.SetAnswer("What is the temperature differential between supply and return air?", "very-low")

	ev := NewEvaluator(nil)
	in := centralAirInput(t, store, responses)
	for i := 0; i < 10; i++ {
		d, ok := ev.EvaluateRules(store, in)
		if !ok || d.RuleID != "dirty-filter-blockage" {
			t.Fatalf("iteration %d: expected dirty-filter-blockage, got %q (ok=%v)", i, d.RuleID, ok)
		}
	}
}

func TestLaterRuleMatchesWhenEarlierFails(t *testing.T) {
	store := loadStore(t)
	responses := models.ResponseStore{}
	responses.SetAnswer("What is the condition of your air filter?", "clean")
	responses.SetAnswer("What is the temperature differential between supply and return air?", "very-low")

	ev := NewEvaluator(nil)
	d, ok := ev.EvaluateRules(store, centralAirInput(t, store, responses))
	if !ok {
		t.Fatal("expected a rule match")
	}
	if d.RuleID != "refrigerant-leak" {
		t.Fatalf("expected refrigerant-leak, got %s", d.RuleID)
	}
}

func TestAlwaysTrueRuleMatchesWithEmptyResponses(t *testing.T) {
	store := loadStore(t)
	resolved := ResolveFlow(store, models.SystemBoiler, models.CategoryHeating)
	if resolved.Skip || resolved.Flow == nil {
		t.Fatal("expected boiler heating flow to resolve")
	}

	ev := NewEvaluator(nil)
	d, ok := ev.EvaluateRules(store, evalInput{
		SessionID: "test",
		System:    models.SystemBoiler,
		Category:  models.CategoryHeating,
		Flow:      resolved.Flow,
		Steps:     resolved.Steps,
		Responses: models.ResponseStore{},
	})
	if !ok {
		t.Fatal("expected the always-true rule to match")
	}
	if d.RuleID != "low-water-pressure" {
		t.Fatalf("expected low-water-pressure, got %s", d.RuleID)
	}
}

func TestNoRuleMatchFallsThroughToAI(t *testing.T) {
	store := loadStore(t)
	responses := models.ResponseStore{}
	responses.SetAnswer("What is the condition of your air filter?", "clean")
	responses.SetAnswer("Which electrical components have you verified?", "all-working")
	responses.SetAnswer("What is the temperature differential between supply and return air?", "normal")

	fake := &fakeDiagnoser{resp: genai.DiagnosticResponse{Text: "Check the capacitor.", SafetyWarning: "Always prioritize safety."}}
	ev := NewEvaluator(fake)
	in := centralAirInput(t, store, responses)

	if _, ok := ev.EvaluateRules(store, in); ok {
		t.Fatal("expected no rule to match")
	}
	d := ev.EvaluateAI(context.Background(), store, in)
	if fake.callCount() != 1 {
		t.Fatalf("expected exactly one AI call, got %d", fake.callCount())
	}
	if d.Title != "AI-Powered Diagnosis" {
		t.Errorf("unexpected title %q", d.Title)
	}
	if !d.AIPowered {
		t.Error("expected AI powered flag set")
	}
	if d.Description != "Check the capacitor." {
		t.Errorf("unexpected description %q", d.Description)
	}
}

func TestAIFailureYieldsFixedFallbackResult(t *testing.T) {
	store := loadStore(t)
	fake := &fakeDiagnoser{err: genai.ErrDiagnosisUnavailable}
	ev := NewEvaluator(fake)

	d := ev.EvaluateAI(context.Background(), store, centralAirInput(t, store, models.ResponseStore{}))
	if d.Title != "Diagnosis Failed" {
		t.Fatalf("expected Diagnosis Failed, got %q", d.Title)
	}
	if len(d.Steps) != 1 || d.Steps[0] != failedDiagnosisStep {
		t.Errorf("unexpected steps %v", d.Steps)
	}
	if d.SafetyWarning == "" {
		t.Error("expected a safety warning on the failure result")
	}
	if d.AIPowered {
		t.Error("failure result must not be marked AI powered")
	}
}

func TestNilDiagnoserYieldsFixedFallbackResult(t *testing.T) {
	store := loadStore(t)
	ev := NewEvaluator(nil)

	d := ev.EvaluateAI(context.Background(), store, centralAirInput(t, store, models.ResponseStore{}))
	if d.Title != "Diagnosis Failed" {
		t.Fatalf("expected Diagnosis Failed, got %q", d.Title)
	}
}

func TestSymptomListReverseMapsResponses(t *testing.T) {
	steps := []models.StepDefinition{
		checklistStep("Safety Assessment", "a", "b"),
		questionStep("What is the condition of your air filter?"),
	}
	responses := models.ResponseStore{}
	responses.SetChecklist(0, []string{"a", "b"})
	responses.SetAnswer("What is the condition of your air filter?", "very-dirty")
	responses["unmapped-key"] = "stray-value"

	symptoms := buildSymptoms(steps, responses)
	want := []string{
		"Safety Assessment: a, b",
		"What is the condition of your air filter?: very-dirty",
		"unmapped key: stray-value",
	}
	if len(symptoms) != len(want) {
		t.Fatalf("expected %d symptoms, got %d: %v", len(want), len(symptoms), symptoms)
	}
	for i := range want {
		if symptoms[i] != want[i] {
			t.Errorf("symptom %d: expected %q, got %q", i, want[i], symptoms[i])
		}
	}
}

func TestSymptomListRendersEmptyChecklist(t *testing.T) {
	steps := []models.StepDefinition{checklistStep("Inspection", "a")}
	responses := models.ResponseStore{}
	responses.SetChecklist(0, nil)

	symptoms := buildSymptoms(steps, responses)
	if len(symptoms) != 1 || symptoms[0] != "Inspection: none" {
		t.Fatalf("unexpected symptoms %v", symptoms)
	}
}

func TestBrokenPredicateIsSkipped(t *testing.T) {
	doc := knowledge.Document{
		Systems:    []knowledge.SystemInfo{{ID: models.SystemCentralAir, Name: "Central Air"}},
		Categories: []knowledge.CategoryInfo{{ID: models.CategoryCooling, Name: "Cooling Issues"}},
		Flows: []models.FlowDefinition{{
			ID:          "test-cooling",
			Title:       "Test Cooling",
			SystemTypes: []string{"Central Air"},
			StepPrompts: []string{"Thermostat"},
			Rules: []models.DiagnosisRule{
				{ID: "broken", Condition: `responses["x"] + 1 > 2`, Title: "Broken"},
				{ID: "sound", Condition: "", Title: "Sound"},
			},
		}},
	}
	store, err := knowledge.NewStore(doc)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	resolved := ResolveFlow(store, models.SystemCentralAir, models.CategoryCooling)
	ev := NewEvaluator(nil)
	d, ok := ev.EvaluateRules(store, evalInput{
		Flow:      resolved.Flow,
		Steps:     resolved.Steps,
		Responses: models.ResponseStore{},
	})
	if !ok || d.RuleID != "sound" {
		t.Fatalf("expected broken rule skipped and sound matched, got %q (ok=%v)", d.RuleID, ok)
	}
}

var errSimulatedTimeout = errors.New("context deadline exceeded")

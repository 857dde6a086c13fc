package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coilworks/hvacpilot/internal/genai"
	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/models"
)

func genaiSuccess(text string) genai.DiagnosticResponse {
	return genai.DiagnosticResponse{Text: text, SafetyWarning: genai.StandardSafetyWarning}
}

func newTestManager(t *testing.T, fake *fakeDiagnoser, opts ...ManagerOption) *Manager {
	t.Helper()
	store := loadStore(t)
	all := append([]ManagerOption{WithDiagnoser(fake)}, opts...)
	return NewManager(func() *knowledge.Store { return store }, all...)
}

// waitForDiagnosis polls until the session's diagnosis reaches the ready
// state or the deadline passes.
func waitForDiagnosis(t *testing.T, m *Manager, sessionID string) *models.Diagnosis {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d, status, err := m.Diagnosis(sessionID)
		if err == nil && status == models.DiagnosisStatusReady {
			return d
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for diagnosis")
	return nil
}

func TestFullTraversalEndsInRuleDiagnosis(t *testing.T) {
	fake := &fakeDiagnoser{}
	m := newTestManager(t, fake)
	state := m.CreateSession("")

	state, err := m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemCentralAir,
		Category: models.CategoryCooling,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if state.TotalSteps != 6 {
		t.Fatalf("expected 6 steps, got %d", state.TotalSteps)
	}

	answers := []models.StepAnswer{
		{Checked: []string{"Verify all electrical power is OFF at breaker panel"}},
		{Checked: []string{}},
		{Value: "very-dirty"},
		{Checked: []string{"Check for ice formation on indoor evaporator coils"}},
		{Value: "not-checked"},
		{Value: "unknown"},
	}
	for i, a := range answers {
		state, err = m.SubmitAnswer(state.SessionID, a)
		if err != nil {
			t.Fatalf("submit answer %d: %v", i, err)
		}
	}
	if !state.Complete {
		t.Fatal("expected session complete after final answer")
	}
	if state.DiagnosisStatus != models.DiagnosisStatusReady {
		t.Fatalf("expected rule diagnosis ready immediately, got %s", state.DiagnosisStatus)
	}

	d, _, err := m.Diagnosis(state.SessionID)
	if err != nil {
		t.Fatalf("diagnosis: %v", err)
	}
	if d.RuleID != "dirty-filter-blockage" {
		t.Fatalf("expected dirty-filter-blockage, got %s", d.RuleID)
	}
	if fake.callCount() != 0 {
		t.Errorf("expected AI not invoked for rule-matched diagnosis, got %d calls", fake.callCount())
	}
}

func TestRulelessFlowFallsBackToAIOnTimeout(t *testing.T) {
	fake := &fakeDiagnoser{err: errSimulatedTimeout}
	m := newTestManager(t, fake)
	state := m.CreateSession("")

	state, err := m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemMiniSplit,
		Category: models.CategoryCooling,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if state.TotalSteps != 1 {
		t.Fatalf("expected 1 step, got %d", state.TotalSteps)
	}

	state, err = m.SubmitAnswer(state.SessionID, models.StepAnswer{Checked: []string{"Check remote control batteries and settings"}})
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if !state.Complete {
		t.Fatal("expected session complete")
	}

	d := waitForDiagnosis(t, m, state.SessionID)
	if d.Title != "Diagnosis Failed" {
		t.Fatalf("expected Diagnosis Failed, got %q", d.Title)
	}
	if fake.callCount() != 1 {
		t.Errorf("expected one AI call, got %d", fake.callCount())
	}
}

func TestSelectionWithoutFlowSkipsToDiagnosis(t *testing.T) {
	fake := &fakeDiagnoser{resp: genaiSuccess("The breaker panel likely has a tripped circuit.")}
	m := newTestManager(t, fake)
	state := m.CreateSession("")

	// No flow title contains "electrical".
	state, err := m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemCentralAir,
		Category: models.CategoryElectrical,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !state.Complete || state.TotalSteps != 0 {
		t.Fatalf("expected immediate completion with zero steps, got complete=%v total=%d", state.Complete, state.TotalSteps)
	}
	if state.Notice == "" {
		t.Error("expected a notice explaining the skip to diagnosis")
	}

	d := waitForDiagnosis(t, m, state.SessionID)
	if d.Title != "AI-Powered Diagnosis" {
		t.Fatalf("expected AI-Powered Diagnosis, got %q", d.Title)
	}
	req := fake.lastRequest()
	if len(req.Symptoms) != 0 {
		t.Errorf("expected empty symptom list, got %v", req.Symptoms)
	}
	if !strings.Contains(req.IssueDescription, "Central Air Conditioning") {
		t.Errorf("expected system display name in issue description, got %q", req.IssueDescription)
	}
}

func TestRestartDiscardsInFlightDiagnosis(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeDiagnoser{resp: genaiSuccess("stale result"), block: release}
	m := newTestManager(t, fake)
	state := m.CreateSession("")

	state, err := m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemMiniSplit,
		Category: models.CategoryCooling,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	state, err = m.SubmitAnswer(state.SessionID, models.StepAnswer{})
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if state.DiagnosisStatus != models.DiagnosisStatusPending {
		t.Fatalf("expected pending diagnosis, got %s", state.DiagnosisStatus)
	}

	if _, err := m.Restart(state.SessionID); err != nil {
		t.Fatalf("restart: %v", err)
	}
	close(release)

	// Give the evaluation goroutine a moment to deliver its stale result.
	time.Sleep(50 * time.Millisecond)
	_, status, err := m.Diagnosis(state.SessionID)
	if err != ErrNoDiagnosis {
		t.Fatalf("expected ErrNoDiagnosis after restart, got status=%s err=%v", status, err)
	}
}

func TestResubmitAfterCompletionRetriggersOnce(t *testing.T) {
	fake := &fakeDiagnoser{err: errSimulatedTimeout}
	m := newTestManager(t, fake)
	state := m.CreateSession("")

	state, _ = m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemMiniSplit,
		Category: models.CategoryCooling,
	})
	state, _ = m.SubmitAnswer(state.SessionID, models.StepAnswer{})
	waitForDiagnosis(t, m, state.SessionID)

	// A second submit after completion re-triggers evaluation idempotently.
	state, err := m.SubmitAnswer(state.SessionID, models.StepAnswer{Value: "ignored"})
	if err != nil {
		t.Fatalf("submit after completion: %v", err)
	}
	if !state.Complete {
		t.Fatal("expected session to stay complete")
	}
	waitForDiagnosis(t, m, state.SessionID)
}

func TestOperationsRequireSelection(t *testing.T) {
	m := newTestManager(t, &fakeDiagnoser{})
	state := m.CreateSession("")

	if _, err := m.SubmitAnswer(state.SessionID, models.StepAnswer{}); err != ErrNoSelection {
		t.Errorf("expected ErrNoSelection from SubmitAnswer, got %v", err)
	}
	if _, err := m.Previous(state.SessionID); err != ErrNoSelection {
		t.Errorf("expected ErrNoSelection from Previous, got %v", err)
	}
	if _, err := m.Restart(state.SessionID); err != ErrNoSelection {
		t.Errorf("expected ErrNoSelection from Restart, got %v", err)
	}
}

func TestUnknownSessionIsRejected(t *testing.T) {
	m := newTestManager(t, &fakeDiagnoser{})
	if _, err := m.State("no-such-session"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Select("no-such-session", models.SelectionRequest{
		System:   models.SystemBoiler,
		Category: models.CategoryHeating,
	}); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInvalidSelectionIsRejected(t *testing.T) {
	m := newTestManager(t, &fakeDiagnoser{})
	state := m.CreateSession("")

	if _, err := m.Select(state.SessionID, models.SelectionRequest{
		System:   "geothermal",
		Category: models.CategoryCooling,
	}); err != models.ErrUnknownSystemType {
		t.Errorf("expected ErrUnknownSystemType, got %v", err)
	}
	if _, err := m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemBoiler,
		Category: "plumbing",
	}); err != models.ErrUnknownCategory {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

type captureRecorder struct {
	mu   sync.Mutex
	recs []models.DiagnosisRecord
}

func (c *captureRecorder) AddDiagnosisRecord(ctx context.Context, rec models.DiagnosisRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}

func TestCompletedDiagnosisIsRecorded(t *testing.T) {
	rec := &captureRecorder{}
	m := newTestManager(t, &fakeDiagnoser{}, WithHistory(rec))
	state := m.CreateSession("user-42")

	state, _ = m.Select(state.SessionID, models.SelectionRequest{
		System:   models.SystemBoiler,
		Category: models.CategoryHeating,
	})
	for !state.Complete {
		var err error
		state, err = m.SubmitAnswer(state.SessionID, models.StepAnswer{})
		if err != nil {
			t.Fatalf("submit answer: %v", err)
		}
	}
	waitForDiagnosis(t, m, state.SessionID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.recs) == 0 {
		t.Fatal("expected a history record")
	}
	got := rec.recs[0]
	if got.UserID != "user-42" || got.ResolvedBy != "low-water-pressure" {
		t.Errorf("unexpected record %+v", got)
	}
}

package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestQuestionKeyNormalization(t *testing.T) {
	cases := map[string]string{
		"What is the condition of your air filter?": "what-is-the-condition-of-your-air-filter?",
		"  Is the   thermostat set to COOL?  ":      "is-the-thermostat-set-to-cool?",
		"Simple":                                    "simple",
	}
	for in, want := range cases {
		if got := QuestionKey(in); got != want {
			t.Errorf("QuestionKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuestionKeyIsStable(t *testing.T) {
	// Writer and reader must derive the same key for the same question text.
	rs := ResponseStore{}
	rs.SetAnswer("What is the condition of your air filter?", "very-dirty")
	got, ok := rs.Answer("What is the condition of your air filter?")
	if !ok || got != "very-dirty" {
		t.Errorf("expected stored answer back, got %q (ok=%v)", got, ok)
	}
}

func TestChecklistKey(t *testing.T) {
	if got := ChecklistKey(3); got != "step-3-checklist" {
		t.Errorf("unexpected checklist key %q", got)
	}
}

func TestSetChecklistNilBecomesEmpty(t *testing.T) {
	rs := ResponseStore{}
	rs.SetChecklist(0, nil)
	v, ok := rs[ChecklistKey(0)]
	if !ok {
		t.Fatal("expected checklist entry for visited step")
	}
	checked, ok := v.([]string)
	if !ok || checked == nil || len(checked) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", v)
	}
}

func TestDehyphenateKey(t *testing.T) {
	if got := DehyphenateKey("what-is-the-noise"); got != "what is the noise" {
		t.Errorf("unexpected dehyphenation %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rs := ResponseStore{"a": "1"}
	snapshot := rs.Clone()
	rs["b"] = "2"
	if !reflect.DeepEqual(snapshot, ResponseStore{"a": "1"}) {
		t.Errorf("clone was affected by later writes: %#v", snapshot)
	}
}

func TestStepDefinitionValidation(t *testing.T) {
	twoOpts := []StepOption{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}}
	cases := []struct {
		name string
		step StepDefinition
		want error
	}{
		{"valid question", StepDefinition{Content: StepContent{Type: StepContentQuestion, Question: "Q?", Options: twoOpts}}, nil},
		{"missing question text", StepDefinition{Content: StepContent{Type: StepContentQuestion, Options: twoOpts}}, ErrMissingQuestion},
		{"no options", StepDefinition{Content: StepContent{Type: StepContentQuestion, Question: "Q?"}}, ErrMissingOptions},
		{"one option", StepDefinition{Content: StepContent{Type: StepContentQuestion, Question: "Q?", Options: twoOpts[:1]}}, ErrInsufficientOptions},
		{"empty option value", StepDefinition{Content: StepContent{Type: StepContentQuestion, Question: "Q?", Options: []StepOption{{Value: "yes"}, {Value: ""}}}}, ErrEmptyOptionValue},
		{"valid checklist", StepDefinition{Content: StepContent{Type: StepContentChecklist, Items: []string{"a"}}}, nil},
		{"empty checklist", StepDefinition{Content: StepContent{Type: StepContentChecklist}}, ErrMissingItems},
		{"unknown type", StepDefinition{Content: StepContent{Type: "slider"}}, ErrInvalidStepContent},
	}
	for _, tc := range cases {
		if err := tc.step.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestFlowDefinitionValidation(t *testing.T) {
	flow := FlowDefinition{ID: "f", SystemTypes: []string{"All"}}
	if err := flow.Validate(); !errors.Is(err, ErrMissingFlowTitle) {
		t.Errorf("expected ErrMissingFlowTitle, got %v", err)
	}
	flow.Title = "Cooling Check"
	flow.SystemTypes = nil
	if err := flow.Validate(); !errors.Is(err, ErrMissingSystemTypeSet) {
		t.Errorf("expected ErrMissingSystemTypeSet, got %v", err)
	}
	flow.SystemTypes = []string{"All"}
	flow.Rules = []DiagnosisRule{{Title: "no id"}}
	if err := flow.Validate(); !errors.Is(err, ErrMissingRuleID) {
		t.Errorf("expected ErrMissingRuleID, got %v", err)
	}
}

func TestAppliesToAll(t *testing.T) {
	flow := FlowDefinition{SystemTypes: []string{"Furnace", "all"}}
	if !flow.AppliesToAll() {
		t.Error("expected case-insensitive wildcard match")
	}
	flow.SystemTypes = []string{"Furnace"}
	if flow.AppliesToAll() {
		t.Error("expected no wildcard match")
	}
}

func TestRegisterRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"valid", RegisterRequest{Username: "sam", Email: "sam@example.com", Password: "longenough"}, nil},
		{"missing username", RegisterRequest{Email: "sam@example.com", Password: "longenough"}, ErrMissingUsername},
		{"missing email", RegisterRequest{Username: "sam", Password: "longenough"}, ErrMissingEmail},
		{"invalid email", RegisterRequest{Username: "sam", Email: "nope", Password: "longenough"}, ErrInvalidEmail},
		{"missing password", RegisterRequest{Username: "sam", Email: "sam@example.com"}, ErrMissingPassword},
		{"short password", RegisterRequest{Username: "sam", Email: "sam@example.com", Password: "short"}, ErrPasswordTooShort},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

// Package models defines the response store shared by the step sequencer
// (writer) and the diagnosis evaluator (reader).
package models

import (
	"fmt"
	"strings"
)

// ResponseStore accumulates user answers keyed by normalized question identity.
// Question steps store the selected option value as a string; checklist steps
// store the checked item identifiers as a []string. The store never shrinks
// during a flow traversal and is reset only on restart.
type ResponseStore map[string]any

// QuestionKey derives the storage key for a question's response: lower-cased,
// internal whitespace collapsed to single hyphens, punctuation preserved.
// This is the single key-derivation function used by both writer and reader.
func QuestionKey(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), "-")
}

// ChecklistKey derives the step-index-scoped storage key for a checklist step.
func ChecklistKey(stepIndex int) string {
	return fmt.Sprintf("step-%d-checklist", stepIndex)
}

// DehyphenateKey converts a response key back to readable text. Used as the
// fallback when no originating step can be found for a key.
func DehyphenateKey(key string) string {
	return strings.ReplaceAll(key, "-", " ")
}

// SetAnswer records a question response under the normalized question key.
func (rs ResponseStore) SetAnswer(question, value string) {
	rs[QuestionKey(question)] = value
}

// SetChecklist records the checked item identifiers for a checklist step.
// An empty selection still writes an empty list, distinguishing a visited
// checklist from one the user never reached.
func (rs ResponseStore) SetChecklist(stepIndex int, checked []string) {
	if checked == nil {
		checked = []string{}
	}
	rs[ChecklistKey(stepIndex)] = checked
}

// Answer returns the stored question response for the given question text.
func (rs ResponseStore) Answer(question string) (string, bool) {
	v, ok := rs[QuestionKey(question)]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a shallow copy so rule evaluation can run against an immutable
// snapshot of the accumulated responses.
func (rs ResponseStore) Clone() ResponseStore {
	out := make(ResponseStore, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

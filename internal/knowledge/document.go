// Package knowledge loads the knowledge document into an immutable Store.
package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "embed"

	"github.com/coilworks/hvacpilot/internal/models"
)

//go:embed default_knowledge.json
var defaultDocument []byte

// Document is the on-disk shape of the knowledge base. Flows and rules are
// JSON arrays so declaration order is preserved; a Go map would not give the
// deterministic iteration order the evaluator depends on.
type Document struct {
	Systems    []SystemInfo            `json:"systems"`
	Categories []CategoryInfo          `json:"categories"`
	Flows      []models.FlowDefinition `json:"flows"`
	Library    []LibraryCategory       `json:"library,omitempty"`
}

// NewStore builds an immutable Store from a parsed document, validating flows
// and compiling every rule condition once. A degraded document without rules
// is tolerated: affected flows simply route to the AI fallback.
func NewStore(doc Document) (*Store, error) {
	st := &Store{
		flows:         doc.Flows,
		systems:       doc.Systems,
		categories:    doc.Categories,
		library:       doc.Library,
		systemNames:   make(map[models.SystemType]string, len(doc.Systems)),
		categoryNames: make(map[models.ProblemCategory]string, len(doc.Categories)),
		compiled:      make(map[string][]CompiledRule, len(doc.Flows)),
	}
	for _, sys := range doc.Systems {
		st.systemNames[sys.ID] = sys.Name
	}
	for _, cat := range doc.Categories {
		st.categoryNames[cat.ID] = cat.Name
	}
	for i := range doc.Flows {
		f := &doc.Flows[i]
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flow %q: %w", f.ID, err)
		}
		if len(f.Rules) == 0 {
			continue
		}
		rules := make([]CompiledRule, 0, len(f.Rules))
		for _, rule := range f.Rules {
			cr, err := compileRule(rule)
			if err != nil {
				return nil, fmt.Errorf("flow %q: %w", f.ID, err)
			}
			rules = append(rules, cr)
		}
		st.compiled[f.ID] = rules
	}
	slog.Debug("knowledge store built", "flows", len(st.flows), "systems", len(st.systems), "categories", len(st.categories))
	return st, nil
}

// LoadBytes parses and builds a Store from raw document bytes.
func LoadBytes(data []byte) (*Store, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge document: %w", err)
	}
	return NewStore(doc)
}

// LoadFile reads and builds a Store from a document on disk.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge document %s: %w", path, err)
	}
	st, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	slog.Info("knowledge document loaded", "path", path, "flows", len(st.flows))
	return st, nil
}

// LoadDefault builds a Store from the embedded default document.
func LoadDefault() (*Store, error) {
	return LoadBytes(defaultDocument)
}

package manuals

import (
	"context"
	"sort"
	"strings"

	"github.com/coilworks/hvacpilot/internal/models"
)

// Field weights for search scoring. Title hits dominate, category and
// subcategory count more than free-text description hits.
const (
	titleWeight       = 4
	categoryWeight    = 2
	descriptionWeight = 1
)

// Search scores catalog entries against the query terms and returns matches
// ordered by descending score. Every term must appear in at least one field
// for a manual to match.
func (s *Service) Search(ctx context.Context, query string) ([]models.ManualSearchResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	manuals, err := s.store.ListManuals(ctx)
	if err != nil {
		return nil, err
	}

	var results []models.ManualSearchResult
	for _, m := range manuals {
		score, snippets := scoreManual(m, terms)
		if score == 0 {
			continue
		}
		results = append(results, models.ManualSearchResult{
			Manual:   m,
			Score:    score,
			Snippets: snippets,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// scoreManual computes the weighted term score for one manual. A manual
// scores zero if any term misses every field.
func scoreManual(m models.Manual, terms []string) (int, []string) {
	title := strings.ToLower(m.Title)
	category := strings.ToLower(m.Category + " " + m.Subcategory)
	description := strings.ToLower(m.Description)

	total := 0
	var snippets []string
	for _, term := range terms {
		score := 0
		if strings.Contains(title, term) {
			score += titleWeight
		}
		if strings.Contains(category, term) {
			score += categoryWeight
		}
		if strings.Contains(description, term) {
			score += descriptionWeight
			if snip := snippet(m.Description, term); snip != "" {
				snippets = append(snippets, snip)
			}
		}
		if score == 0 {
			return 0, nil
		}
		total += score
	}
	return total, snippets
}

// snippet extracts a short window of the description around the first
// occurrence of the term.
func snippet(text, term string) string {
	const window = 40
	idx := strings.Index(strings.ToLower(text), term)
	if idx < 0 {
		return ""
	}
	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + window
	if end > len(text) {
		end = len(text)
	}
	snip := strings.TrimSpace(text[start:end])
	if start > 0 {
		snip = "..." + snip
	}
	if end < len(text) {
		snip += "..."
	}
	return snip
}

// tokenize lowercases the query and splits it into unique terms.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

// Package knowledge serves the static reference library content.
package knowledge

import "strings"

// LibraryReference is a labelled pointer to external reference material.
type LibraryReference struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// LibraryCategory groups troubleshooting procedures and references for one
// area of the knowledge base.
type LibraryCategory struct {
	Name       string             `json:"name"`
	Icon       string             `json:"icon,omitempty"`
	Procedures []string           `json:"procedures"`
	References []LibraryReference `json:"references,omitempty"`
}

// LibrarySearchResult is one hit from a library search: the category it was
// found in and the matching procedure or reference label.
type LibrarySearchResult struct {
	Category string `json:"category"`
	Title    string `json:"title"`
}

// SearchLibrary returns library entries whose category name, procedure text,
// or reference label contains the query, case-insensitive. Results preserve
// library declaration order.
func (s *Store) SearchLibrary(query string) []LibrarySearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var results []LibrarySearchResult
	for _, cat := range s.library {
		if strings.Contains(strings.ToLower(cat.Name), query) {
			results = append(results, LibrarySearchResult{Category: cat.Name, Title: cat.Name})
		}
		for _, proc := range cat.Procedures {
			if strings.Contains(strings.ToLower(proc), query) {
				results = append(results, LibrarySearchResult{Category: cat.Name, Title: proc})
			}
		}
		for _, ref := range cat.References {
			if strings.Contains(strings.ToLower(ref.Label), query) {
				results = append(results, LibrarySearchResult{Category: cat.Name, Title: ref.Label})
			}
		}
	}
	return results
}

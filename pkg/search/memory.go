package search

import (
	"context"
	"strings"
)

// MemorySearcher serves a fixed document set with substring matching.
// Used in tests and for local development without a search service.
type MemorySearcher struct {
	Docs Results
}

func NewMemorySearcher(docs Results) *MemorySearcher {
	return &MemorySearcher{Docs: docs}
}

func (m *MemorySearcher) Search(_ context.Context, query string, topK int) (Results, error) {
	q := strings.ToLower(query)
	out := Results{}
	for _, source := range Sources {
		var hits []map[string]any
		for _, doc := range m.Docs[source] {
			if len(hits) >= topK {
				break
			}
			if docMatches(doc, q) {
				hits = append(hits, doc)
			}
		}
		out[source] = hits
	}
	return out, nil
}

func docMatches(doc map[string]any, q string) bool {
	for _, word := range strings.Fields(q) {
		for _, v := range doc {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), word) {
				return true
			}
		}
	}
	return false
}

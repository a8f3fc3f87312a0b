// Package search retrieves schema metadata documents and condenses them
// into the grounding pack handed to SQL generation.
package search

import "context"

// Sources are the metadata index groups, in grounding order.
var Sources = []string{"field", "table", "relationship"}

// Results holds raw documents grouped by source index.
type Results map[string][]map[string]any

// Searcher queries the metadata indexes. Implementations degrade per
// index: a failing index contributes an empty list, never an error for
// the whole call.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (Results, error)
}

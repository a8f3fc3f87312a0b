package search

import (
	"fmt"
	"strings"

	"github.com/datamesa/assistant/pkg/contracts"
)

const (
	maxCitationsPerSource = 8
	maxGroundingLines     = 25
	snippetMaxLen         = 220
)

// BuildGroundingPack condenses raw search results into citations and the
// compact grounding text handed to the model. Empty results produce a
// valid pack with the "(no metadata found)" sentinel.
func BuildGroundingPack(raw Results) contracts.GroundingPack {
	var citations []contracts.Citation
	for _, source := range Sources {
		docs := raw[source]
		if len(docs) > maxCitationsPerSource {
			docs = docs[:maxCitationsPerSource]
		}
		for _, doc := range docs {
			citations = append(citations, contracts.Citation{
				Source:     source,
				DocID:      docString(doc, "id", "ID", "key"),
				Snippet:    docSnippet(doc),
				SchemaName: docString(doc, "schema_name", "SCHEMA_NAME"),
				TableName:  docString(doc, "table_name", "TABLE_NAME"),
				ColumnName: docString(doc, "column_name", "COLUMN_NAME"),
			})
		}
	}

	var lines []string
	for i, c := range citations {
		if i >= maxGroundingLines {
			break
		}
		lines = append(lines, fmt.Sprintf("[%s] %s.%s.%s :: %s", c.Source, c.SchemaName, c.TableName, c.ColumnName, c.Snippet))
	}
	text := "(no metadata found)"
	if len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}

	return contracts.GroundingPack{
		Citations: citations,
		RawDocs:   raw,
		Text:      text,
	}
}

func docString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
			if v != nil {
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return ""
}

// docSnippet condenses a document into a single whitespace-normalized
// line of at most snippetMaxLen characters.
func docSnippet(doc map[string]any) string {
	txt := docString(doc, "content", "business_description", "BUSINESS_DESCRIPTION")
	if txt == "" {
		txt = fmt.Sprintf("%v", doc)
	}
	txt = strings.Join(strings.Fields(txt), " ")
	if len(txt) > snippetMaxLen {
		return txt[:snippetMaxLen] + "..."
	}
	return txt
}

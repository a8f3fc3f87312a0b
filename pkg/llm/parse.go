package llm

import "strings"

// Model output is untrusted text. The helpers below pull the first usable
// JSON object or SQL statement out of whatever framing the model wrapped
// it in, and return "" when nothing usable is present.

// fencedBlock returns the trimmed contents of the first ```lang fenced
// block. lang may be empty for a bare fence.
func fencedBlock(response, lang string) (string, bool) {
	marker := "```" + lang
	start := strings.Index(response, marker)
	if start < 0 {
		return "", false
	}
	rest := response[start+len(marker):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// extractJSON pulls the first JSON object out of a model response,
// tolerating markdown fences and surrounding prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if block, ok := fencedBlock(response, "json"); ok {
		return block
	}
	if block, ok := fencedBlock(response, ""); ok && strings.HasPrefix(block, "{") {
		return block
	}
	if start := strings.Index(response, "{"); start >= 0 {
		return extractJSONObject(response, start)
	}
	return ""
}

// extractJSONObject scans a balanced object from s[start:]. Braces inside
// string literals do not count toward the balance; an unbalanced object
// yields "".
func extractJSONObject(s string, start int) string {
	if start >= len(s) || s[start] != '{' {
		return ""
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		switch c := s[i]; {
		case inString && c == '\\':
			i++ // the escaped byte never toggles state
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// cleanSQL strips surrounding whitespace and the trailing statement
// terminator.
func cleanSQL(sql string) string {
	return strings.TrimSuffix(strings.TrimSpace(sql), ";")
}

// looksLikeSQL reports whether text starts a read query.
func looksLikeSQL(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// extractSQLFromCodeBlocks pulls SQL out of a fenced block, preferring an
// explicit ```sql fence over a bare one.
func extractSQLFromCodeBlocks(response string) string {
	if block, ok := fencedBlock(response, "sql"); ok {
		return cleanSQL(block)
	}
	if block, ok := fencedBlock(response, ""); ok && looksLikeSQL(block) {
		return cleanSQL(block)
	}
	return ""
}

// truncateString caps s at maxLen bytes, marking the cut.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package fastpath

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultThreshold is the minimum score for a template match.
const DefaultThreshold = 0.72

// MatchResult pairs a matched template with its score.
type MatchResult struct {
	Template QueryTemplate
	Score    float64
}

// similarity returns a normalized [0,1] similarity between two strings
// based on Levenshtein distance.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(max)
}

// Score combines keyword coverage (70%) with string similarity against the
// template's name and description (30%).
func Score(question string, tmpl QueryTemplate) float64 {
	q := strings.ToLower(question)

	hits := 0
	for _, k := range tmpl.Keywords {
		if strings.Contains(q, strings.ToLower(k)) {
			hits++
		}
	}
	kwTotal := len(tmpl.Keywords)
	if kwTotal == 0 {
		kwTotal = 1
	}
	kwScore := float64(hits) / float64(kwTotal)

	sim := similarity(q, strings.ToLower(tmpl.Name+" "+tmpl.Description))
	return 0.7*kwScore + 0.3*sim
}

// BestMatch returns the highest-scoring template at or above the threshold,
// or nil when no template qualifies.
func BestMatch(question string, templates []QueryTemplate, threshold float64) *MatchResult {
	var best *MatchResult
	for _, t := range templates {
		s := Score(question, t)
		if best == nil || s > best.Score {
			best = &MatchResult{Template: t, Score: s}
		}
	}
	if best != nil && best.Score >= threshold {
		return best
	}
	return nil
}

// ExtractParams applies the template's named patterns against the raw
// question. Unmatched parameters are omitted.
func ExtractParams(text string, tmpl QueryTemplate) map[string]string {
	params := map[string]string{}
	for key, pattern := range tmpl.ParamPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for i, name := range pattern.SubexpNames() {
			if name == key && i < len(m) && m[i] != "" {
				params[key] = m[i]
			}
		}
	}
	return params
}

// MissingRequired returns the required parameters absent from params.
func MissingRequired(tmpl QueryTemplate, params map[string]string) []string {
	var missing []string
	for _, name := range tmpl.RequiredParams {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// RenderTemplate substitutes {param} placeholders.
func RenderTemplate(template string, params map[string]string) string {
	out := template
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

package availdata

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var timeColumnCandidates = []string{"as_of_date", "as_of_week", "as_of_month", "date", "week", "month"}

// Deterministic synonym mapping from common manager phrasing to metric
// column names. Checked before any fuzzy fallback.
var metricSynonyms = map[string][]string{
	"customer satisfaction": {"nps"},
	"satisfaction":          {"nps"},
	"nps":                   {"nps"},
	"churn":                 {"churn_rate", "churn_pct"},
	"retention":             {"retention_rate"},
	"latency":               {"p95_latency_ms"},
	"incidents":             {"incident_count"},
	"uptime":                {"uptime"},
	"deposits":              {"total_deposits", "deposits", "balance"},
	"loans":                 {"total_loans"},
	"net income":            {"net_income"},
	"revenue":               {"net_revenue"},
	"efficiency":            {"efficiency_ratio"},
	"risk":                  {"risk_score", "npl_ratio"},
	"credit quality":        {"npl_ratio", "stage2_ratio"},
}

// MetricMatch is the best dataset/metric combination for a free question.
type MetricMatch struct {
	Dataset    string
	TimeCol    string
	MetricCols []string
	Score      float64
	Reason     string
}

var wordSplitRe = regexp.MustCompile(`\W+`)

func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(max)
}

// FindDatasetAndMetrics picks the dataset and metric columns best matching
// a question that hit no known intent. Returns nil when nothing suitable
// exists, which the caller must surface as a confirmation prompt, never a
// silent fallthrough.
func FindDatasetAndMetrics(store *Store, question string) *MetricMatch {
	q := strings.ToLower(question)

	var desired []string
	for k, cols := range metricSynonyms {
		if strings.Contains(q, k) {
			desired = append(desired, cols...)
		}
	}

	var best *MetricMatch
	for _, ds := range store.ListDatasets() {
		originalCols, err := store.Schema(ds)
		if err != nil {
			continue
		}
		lower := make([]string, len(originalCols))
		for i, c := range originalCols {
			lower[i] = strings.ToLower(c)
		}

		timeCol := ""
		for _, tc := range timeColumnCandidates {
			for i, c := range lower {
				if c == tc {
					timeCol = originalCols[i]
					break
				}
			}
			if timeCol != "" {
				break
			}
		}
		if timeCol == "" {
			continue
		}

		var metrics []string
		for _, want := range desired {
			for i, c := range lower {
				if c == strings.ToLower(want) {
					metrics = append(metrics, originalCols[i])
				}
			}
		}

		// Fuzzy fallback: pick up to two columns resembling question words.
		if len(metrics) == 0 {
			words := []string{}
			for _, w := range wordSplitRe.Split(q, -1) {
				if w != "" {
					words = append(words, w)
				}
			}
			type scored struct {
				s float64
				c string
			}
			var candidates []scored
			for _, c := range originalCols {
				bestWord := 0.0
				for _, w := range words {
					if s := similarity(w, c); s > bestWord {
						bestWord = s
					}
				}
				candidates = append(candidates, scored{s: bestWord, c: c})
			}
			for n := 0; n < 2; n++ {
				bi := -1
				for i, cand := range candidates {
					if cand.s >= 0.65 && (bi < 0 || cand.s > candidates[bi].s) {
						bi = i
					}
				}
				if bi < 0 {
					break
				}
				metrics = append(metrics, candidates[bi].c)
				candidates[bi].s = 0
			}
		}

		if len(metrics) == 0 {
			continue
		}

		score := float64(len(metrics))
		bestSim := 0.0
		for _, m := range metrics {
			if s := similarity(m, question); s > bestSim {
				bestSim = s
			}
		}
		score += bestSim
		cand := &MetricMatch{
			Dataset:    ds,
			TimeCol:    timeCol,
			MetricCols: metrics,
			Score:      score,
			Reason:     "time=" + timeCol + "; metrics=" + strings.Join(metrics, ","),
		}
		if best == nil || cand.Score > best.Score {
			best = cand
		}
	}
	return best
}

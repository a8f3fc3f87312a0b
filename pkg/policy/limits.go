package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/datamesa/assistant/pkg/contracts"
)

var (
	selectPrefixRe = regexp.MustCompile(`(?i)^\s*select\s+`)
	topClauseRe    = regexp.MustCompile(`(?i)\btop\s+\(?\s*\d+\s*\)?`)
	limitClauseRe  = regexp.MustCompile(`(?i)\blimit\s+\d+\b`)
)

// LimitsPolicy injects row limits into SQL text and truncates executed
// results. Both are applied even when the collaborator enforces its own
// limits.
type LimitsPolicy struct{}

// NewLimitsPolicy returns the limits enforcer.
func NewLimitsPolicy() LimitsPolicy { return LimitsPolicy{} }

// ApplyRowLimit ensures the statement carries a row-limiting clause for the
// given backend dialect. Idempotent: a statement that already has one is
// returned unchanged (minus trailing terminator).
func (LimitsPolicy) ApplyRowLimit(sql string, backend contracts.Backend, maxRows int) string {
	s := strings.TrimSuffix(strings.TrimSpace(sql), ";")
	if s == "" {
		return s
	}

	if backend == contracts.BackendSQLServer {
		if topClauseRe.MatchString(s) {
			return s
		}
		return selectPrefixRe.ReplaceAllString(s, fmt.Sprintf("SELECT TOP (%d) ", maxRows))
	}

	if limitClauseRe.MatchString(s) {
		return s
	}
	return fmt.Sprintf("%s LIMIT %d", s, maxRows)
}

// TruncateResult caps columns and rows for presentation. The checks are
// independent; truncated is true when either cap applied.
func (LimitsPolicy) TruncateResult(columns []string, rows [][]any, maxCols, maxRows int) ([]string, [][]any, bool) {
	truncated := false

	if len(columns) > maxCols {
		columns = columns[:maxCols]
		sliced := make([][]any, len(rows))
		for i, r := range rows {
			if len(r) > maxCols {
				sliced[i] = r[:maxCols]
			} else {
				sliced[i] = r
			}
		}
		rows = sliced
		truncated = true
	}

	if len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}

	return columns, rows, truncated
}

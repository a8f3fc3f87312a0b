// Package fastpath matches user questions against a registry of
// parameterized query templates, bypassing SQL generation for known
// questions.
package fastpath

import "regexp"

// QueryTemplate is one parameterized query. Templates are loaded at startup
// and read-only thereafter.
type QueryTemplate struct {
	Name        string
	Intent      string
	Keywords    []string
	// ParamPatterns maps a parameter name to a regex containing a named
	// capture group of the same name.
	ParamPatterns map[string]*regexp.Regexp
	// RequiredParams lists parameters that must be extracted for the
	// template to be usable. A template missing a required parameter is
	// rejected rather than rendered with holes (fail closed).
	RequiredParams []string
	SQLServer      string
	DuckDB         string
	Description    string
}

// DefaultRegistry returns the built-in template library. Production
// deployments replace this with their curated top-N query set.
func DefaultRegistry() []QueryTemplate {
	return []QueryTemplate{
		{
			Name:     "deposit_count_by_day",
			Intent:   "analytics_report",
			Keywords: []string{"deposit", "count", "by day", "daily"},
			ParamPatterns: map[string]*regexp.Regexp{
				"src_cd": regexp.MustCompile(`(?i)\b(?P<src_cd>IMSB|STAX)\b`),
				"days":   regexp.MustCompile(`(?i)last\s+(?P<days>\d+)\s+days`),
			},
			RequiredParams: []string{"src_cd", "days"},
			SQLServer: "SELECT TOP (50) as_of_dt AS day, COUNT(1) AS deposit_count " +
				"FROM dlv_dep_tran " +
				"WHERE src_cd = '{src_cd}' AND as_of_dt >= DATEADD(day, -{days}, CAST(GETDATE() AS date)) " +
				"GROUP BY as_of_dt ORDER BY as_of_dt",
			DuckDB: "SELECT as_of_dt AS day, COUNT(1) AS deposit_count " +
				"FROM dlv_dep_tran " +
				"WHERE src_cd = '{src_cd}' AND as_of_dt >= current_date - INTERVAL '{days}' DAY " +
				"GROUP BY as_of_dt ORDER BY as_of_dt LIMIT 50",
			Description: "Daily deposit counts for a source code over last N days.",
		},
		{
			Name:     "branch_deposit_totals",
			Intent:   "data_question",
			Keywords: []string{"branch", "deposit", "total"},
			ParamPatterns: map[string]*regexp.Regexp{
				"region": regexp.MustCompile(`(?i)\bin\s+(?P<region>[A-Za-z ]{2,30})\s+region\b`),
			},
			SQLServer: "SELECT TOP (50) branch_name, SUM(balance) AS total_deposits " +
				"FROM branch_balances GROUP BY branch_name ORDER BY total_deposits DESC",
			DuckDB: "SELECT branch_name, SUM(balance) AS total_deposits " +
				"FROM branch_balances GROUP BY branch_name ORDER BY total_deposits DESC LIMIT 50",
			Description: "Total deposits per branch, largest first.",
		},
	}
}

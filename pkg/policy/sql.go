// Package policy implements the deterministic SQL safety and limits rules.
package policy

import (
	"regexp"
	"strings"
)

// Keywords associated with mutation, schema change, privilege change,
// dynamic execution, or external data sources. Matched case-insensitively
// on word boundaries; xp_/sp_ are prefix families (extended and system
// stored procedures).
var denyPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|grant|revoke|execute|exec|openrowset|opendatasource)\b|(?i)\b(xp|sp)_\w*`)

// SqlPolicy validates that SQL text is a single read-only statement.
// It has no state and no side effects.
type SqlPolicy struct{}

// NewSqlPolicy returns the read-only SQL validator.
func NewSqlPolicy() SqlPolicy { return SqlPolicy{} }

// Validate returns a list of violations; empty means the SQL looks safe.
// All rules are checked so every violation is reported, except the empty
// input case which is reported alone.
func (SqlPolicy) Validate(sql string) []string {
	s := strings.TrimSpace(sql)
	if s == "" {
		return []string{"Empty SQL"}
	}

	var violations []string

	// A semicolon is only allowed as the single trailing terminator.
	if strings.Contains(s[:len(s)-1], ";") {
		violations = append(violations, "Multiple statements are not allowed")
	}

	// Comments could hide injected clauses from review.
	if strings.Contains(s, "--") || strings.Contains(s, "/*") || strings.Contains(s, "*/") {
		violations = append(violations, "SQL comments are not allowed")
	}

	low := strings.ToLower(s)
	if !strings.HasPrefix(low, "select") && !strings.HasPrefix(low, "with") {
		violations = append(violations, "Only SELECT queries are allowed")
	}

	if denyPattern.MatchString(s) {
		violations = append(violations, "DDL/DML or unsafe keyword detected")
	}

	return violations
}

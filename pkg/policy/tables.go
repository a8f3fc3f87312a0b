package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// TableAccessPolicy evaluates which tables a generated plan may touch. It is
// an additional gate on top of SqlPolicy: the SQL text may be read-only and
// still reference tables the caller's role must not see.
type TableAccessPolicy struct {
	query rego.PreparedEvalQuery
}

// DefaultTableAccessPolicy allows everything except an optional denylist
// provided as input. Operators replace it with their own module.
const DefaultTableAccessPolicy = `
package table_access

default decision = "allow"

decision = "deny" {
	some i, j
	input.used_tables[i] == input.denied_tables[j]
}
`

// NewTableAccessPolicy compiles the given rego module.
func NewTableAccessPolicy(ctx context.Context, module string) (*TableAccessPolicy, error) {
	r := rego.New(
		rego.Query("data.table_access.decision"),
		rego.Module("table_access.rego", module),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &TableAccessPolicy{query: query}, nil
}

// Evaluate returns "allow" or "deny" for the given plan tables and role.
// An empty result set falls back to allow; the module is expected to define
// its own default.
func (p *TableAccessPolicy) Evaluate(ctx context.Context, usedTables, deniedTables []string, role string) (string, error) {
	input := map[string]any{
		"used_tables":   usedTables,
		"denied_tables": deniedTables,
		"role":          role,
	}
	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate table access policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "allow", nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "allow", nil
}

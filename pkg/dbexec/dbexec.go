// Package dbexec executes validated read-only SQL against the configured
// backend. Policy validation happens upstream; the executors add a second
// line of defense by connecting read-only where the driver supports it.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/policy"
)

// Executor runs one validated query with a hard deadline.
type Executor interface {
	Execute(ctx context.Context, sqlText string, timeout time.Duration) (contracts.QueryResult, error)
	Close() error
}

// readOnlyGuard re-checks SQL at the execution boundary. Policy runs
// upstream; a plan that slips past it still must not reach the database.
var readOnlyGuard = policy.NewSqlPolicy()

// queryRows runs the query and scans every row into a generic result.
func queryRows(ctx context.Context, db *sql.DB, sqlText string, timeout time.Duration) (contracts.QueryResult, error) {
	if violations := readOnlyGuard.Validate(sqlText); len(violations) > 0 {
		return contracts.QueryResult{}, fmt.Errorf("%w: %s", contracts.ErrUnsafeSQL, strings.Join(violations, "; "))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return contracts.QueryResult{}, fmt.Errorf("%w: %v", contracts.ErrExecution, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return contracts.QueryResult{}, fmt.Errorf("%w: %v", contracts.ErrExecution, err)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return contracts.QueryResult{}, fmt.Errorf("%w: %v", contracts.ErrExecution, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return contracts.QueryResult{}, fmt.Errorf("%w: %v", contracts.ErrExecution, err)
	}

	return contracts.QueryResult{
		Columns:   columns,
		Rows:      out,
		RowCount:  len(out),
		ElapsedMS: time.Since(start).Milliseconds(),
	}, nil
}

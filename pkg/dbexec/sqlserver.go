package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/datamesa/assistant/pkg/contracts"
)

// SQLServerExecutor runs queries against the enterprise warehouse.
type SQLServerExecutor struct {
	db *sql.DB
}

// NewSQLServerExecutor opens a connection pool for the given connection
// string. The account used should be read-only; SQL validation upstream is
// the primary guard, not the only one.
func NewSQLServerExecutor(connStr string) (*SQLServerExecutor, error) {
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver connection: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &SQLServerExecutor{db: db}, nil
}

func (e *SQLServerExecutor) Execute(ctx context.Context, sqlText string, timeout time.Duration) (contracts.QueryResult, error) {
	return queryRows(ctx, e.db, sqlText, timeout)
}

func (e *SQLServerExecutor) Close() error {
	return e.db.Close()
}

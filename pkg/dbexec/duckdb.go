package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/datamesa/assistant/pkg/contracts"
)

// DuckDBExecutor runs queries against an embedded DuckDB file opened
// read-only.
type DuckDBExecutor struct {
	db *sql.DB
}

// NewDuckDBExecutor opens the database at path. An empty path opens an
// in-memory database (writable; used in tests).
func NewDuckDBExecutor(path string) (*DuckDBExecutor, error) {
	dsn := path
	if path != "" {
		dsn = path + "?access_mode=read_only"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return &DuckDBExecutor{db: db}, nil
}

func (e *DuckDBExecutor) Execute(ctx context.Context, sqlText string, timeout time.Duration) (contracts.QueryResult, error) {
	return queryRows(ctx, e.db, sqlText, timeout)
}

func (e *DuckDBExecutor) Close() error {
	return e.db.Close()
}

// DB exposes the underlying handle for dataset seeding in tests.
func (e *DuckDBExecutor) DB() *sql.DB { return e.db }

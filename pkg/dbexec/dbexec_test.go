package dbexec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datamesa/assistant/pkg/contracts"
)

func TestDuckDBExecutor(t *testing.T) {
	t.Parallel()

	exec, err := NewDuckDBExecutor("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })

	_, err = exec.DB().Exec(`CREATE TABLE deposits (day VARCHAR, amount DOUBLE)`)
	require.NoError(t, err)
	_, err = exec.DB().Exec(`INSERT INTO deposits VALUES ('2025-01-01', 100.5), ('2025-01-02', 200.25)`)
	require.NoError(t, err)

	t.Run("returns_columns_and_rows", func(t *testing.T) {
		got, err := exec.Execute(context.Background(), `SELECT day, amount FROM deposits ORDER BY day LIMIT 10`, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, []string{"day", "amount"}, got.Columns)
		require.Equal(t, 2, got.RowCount)
		require.Equal(t, "2025-01-01", got.Rows[0][0])
	})

	t.Run("execution_errors_wrap_sentinel", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), `SELECT nope FROM missing_table`, 5*time.Second)
		require.Error(t, err)
		require.True(t, errors.Is(err, contracts.ErrExecution))
	})

	t.Run("mutating_sql_never_reaches_the_database", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), `DROP TABLE deposits`, 5*time.Second)
		require.ErrorIs(t, err, contracts.ErrUnsafeSQL)

		got, err := exec.Execute(context.Background(), `SELECT count(*) AS n FROM deposits`, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, 1, got.RowCount)
	})
}

func TestScriptedExecutor(t *testing.T) {
	t.Parallel()

	s := NewScriptedExecutor()
	s.QueueError(errors.New("boom"))
	s.QueueResult(contracts.QueryResult{Columns: []string{"a"}, Rows: [][]any{{1}}, RowCount: 1})

	_, err := s.Execute(context.Background(), "SELECT 1", 0)
	require.Error(t, err)

	got, err := s.Execute(context.Background(), "SELECT 2", 0)
	require.NoError(t, err)
	require.Equal(t, 1, got.RowCount)
	require.Equal(t, []string{"SELECT 1", "SELECT 2"}, s.SQL)
}

package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSqlPolicyValidate(t *testing.T) {
	t.Parallel()
	p := NewSqlPolicy()

	t.Run("empty_sql", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, []string{"Empty SQL"}, p.Validate("   "))
		require.Equal(t, []string{"Empty SQL"}, p.Validate(""))
	})

	t.Run("allows_simple_select", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, p.Validate("SELECT 1"))
		require.Empty(t, p.Validate("  select name, total FROM accounts WHERE total > 0"))
		require.Empty(t, p.Validate("SELECT col FROM t;"))
	})

	t.Run("allows_cte", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, p.Validate("WITH x AS (SELECT 1 AS n) SELECT n FROM x"))
	})

	t.Run("blocks_dml", func(t *testing.T) {
		t.Parallel()
		for _, sql := range []string{
			"DELETE FROM accounts",
			"insert into t values (1)",
			"UPDATE t SET a = 1",
			"MERGE INTO t USING s ON t.id = s.id",
			"TRUNCATE TABLE t",
		} {
			require.NotEmpty(t, p.Validate(sql), "expected violations for %q", sql)
		}
	})

	t.Run("blocks_denylisted_keyword_inside_select", func(t *testing.T) {
		t.Parallel()
		v := p.Validate("SELECT * FROM t WHERE EXEC('x') = 1")
		require.Contains(t, v, "DDL/DML or unsafe keyword detected")
	})

	t.Run("blocks_stored_procedure_prefixes", func(t *testing.T) {
		t.Parallel()
		require.NotEmpty(t, p.Validate("SELECT xp_cmdshell"))
		require.NotEmpty(t, p.Validate("SELECT sp_help"))
	})

	t.Run("deny_match_is_word_bounded", func(t *testing.T) {
		t.Parallel()
		// "created_at" and "updated_total" contain deny words as substrings
		// but not as words.
		require.Empty(t, p.Validate("SELECT created_at, updated_total FROM events"))
	})

	t.Run("blocks_multiple_statements", func(t *testing.T) {
		t.Parallel()
		v := p.Validate("SELECT 1; SELECT 2")
		require.Contains(t, v, "Multiple statements are not allowed")
	})

	t.Run("blocks_comments", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, p.Validate("SELECT 1 -- hidden"), "SQL comments are not allowed")
		require.Contains(t, p.Validate("SELECT /* x */ 1"), "SQL comments are not allowed")
	})

	t.Run("reports_all_violations", func(t *testing.T) {
		t.Parallel()
		v := p.Validate("DROP TABLE t; -- gone")
		require.Len(t, v, 4)
	})

	t.Run("non_select_start", func(t *testing.T) {
		t.Parallel()
		v := p.Validate("EXPLAIN SELECT 1")
		require.Contains(t, v, "Only SELECT queries are allowed")
	})
}

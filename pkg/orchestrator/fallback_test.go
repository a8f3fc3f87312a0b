package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/dbexec"
	"github.com/datamesa/assistant/pkg/fastpath"
	"github.com/datamesa/assistant/pkg/llm"
)

const (
	intentDataQA     = `{"intent":"data_question","confidence":0.92}`
	intentReport     = `{"intent":"analytics_report","confidence":0.9}`
	clarityClear     = `{"is_clear":true}`
	sqlGenOK         = `{"sql_server":"SELECT TOP (50) region, total FROM sales","sql_duckdb":"SELECT region, total FROM sales LIMIT 50","used_tables":["sales"]}`
	triagePatch      = `{"action":"RETRY_WITH_PATCH","patched_sql_server":"SELECT TOP (50) region, total FROM sales WHERE total IS NOT NULL","patched_sql_duckdb":"SELECT region, total FROM sales WHERE total IS NOT NULL LIMIT 50"}`
	interpretOK      = `{"answer":"Sales are concentrated in the West region.","followups":["Break down by product"]}`
)

func fallbackRequest(message string) contracts.ChatRequest {
	return contracts.ChatRequest{
		SessionID: "s1",
		Message:   message,
		UI:        contracts.UISettings{Debug: true, Backend: contracts.BackendDuckDB},
		Meta:      &contracts.RequestMeta{ConfirmSearchElsewhere: true},
	}
}

func newFallbackOrchestrator(sc *llm.ScriptedCompleter, exec *dbexec.ScriptedExecutor, mutate func(*Deps)) *Orchestrator {
	d := Deps{
		Tools:    llm.NewToolset(sc),
		Executor: exec,
	}
	if mutate != nil {
		mutate(&d)
	}
	return New(d)
}

func salesResult() contracts.QueryResult {
	return contracts.QueryResult{
		Columns:  []string{"region", "total"},
		Rows:     [][]any{{"West", 1200.0}, {"East", 800.0}},
		RowCount: 2,
	}
}

func TestFallbackBlockedByPolicy(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
		`{"sql_server":"DELETE FROM accounts","sql_duckdb":"DELETE FROM accounts"}`,
	)
	exec := dbexec.NewScriptedExecutor()
	o := newFallbackOrchestrator(sc, exec, nil)

	resp := o.Run(context.Background(), fallbackRequest("DELETE FROM accounts"))

	require.Equal(t, contracts.StatusBlocked, resp.Status)
	require.Contains(t, resp.Answer, "blocked by the safety policy")
	require.Empty(t, exec.SQL, "unsafe SQL never reaches the executor")
}

func TestFallbackRetryWithPatchThenSuccess(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
		sqlGenOK,
		triagePatch,
		triagePatch,
		interpretOK,
	)
	exec := dbexec.NewScriptedExecutor()
	exec.QueueError(fmt.Errorf("syntax error near FROM"))
	exec.QueueError(fmt.Errorf("column total does not exist"))
	exec.QueueResult(salesResult())
	o := newFallbackOrchestrator(sc, exec, nil)

	resp := o.Run(context.Background(), fallbackRequest("total sales by region"))

	require.Equal(t, contracts.StatusOK, resp.Status)
	require.Equal(t, "Sales are concentrated in the West region.", resp.Answer)
	require.NotNil(t, resp.Result)
	require.Equal(t, 2, resp.Result.RowCount)
	require.Contains(t, resp.SQLDuckDB, "WHERE total IS NOT NULL")
	require.Equal(t, 2, countTrace(resp, "error_triage"))
	require.Len(t, exec.SQL, 3)
}

func TestFallbackRetryBound(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
		sqlGenOK,
		triagePatch,
	)
	exec := dbexec.NewScriptedExecutor()
	exec.QueueError(fmt.Errorf("timeout"))
	exec.QueueError(fmt.Errorf("timeout"))
	o := newFallbackOrchestrator(sc, exec, func(d *Deps) {
		d.MaxRetryAttempts = 2
	})

	resp := o.Run(context.Background(), fallbackRequest("total sales by region"))

	require.Equal(t, contracts.StatusError, resp.Status)
	require.Contains(t, resp.Answer, "Query failed after 2 attempts")
	require.Len(t, exec.SQL, 2)
}

func TestFallbackUnsafePatchBlocked(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
		sqlGenOK,
		`{"action":"RETRY_WITH_PATCH","patched_sql_server":"DROP TABLE sales","patched_sql_duckdb":"DROP TABLE sales"}`,
	)
	exec := dbexec.NewScriptedExecutor()
	exec.QueueError(fmt.Errorf("syntax error"))
	o := newFallbackOrchestrator(sc, exec, nil)

	resp := o.Run(context.Background(), fallbackRequest("total sales by region"))

	require.Equal(t, contracts.StatusBlocked, resp.Status)
	require.Equal(t, "Patched SQL blocked by policy.", resp.Answer)
	require.Len(t, exec.SQL, 1, "the unsafe patch never executes")
}

func TestFallbackTriageAsksClarification(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
		sqlGenOK,
		`{"action":"ASK_CLARIFICATION","user_message":"Which fiscal year?","clarifying_questions":["Which fiscal year?"]}`,
	)
	exec := dbexec.NewScriptedExecutor()
	exec.QueueError(fmt.Errorf("ambiguous column"))
	o := newFallbackOrchestrator(sc, exec, nil)

	resp := o.Run(context.Background(), fallbackRequest("total sales by region"))

	require.Equal(t, contracts.StatusNeedClarification, resp.Status)
	require.Equal(t, "Which fiscal year?", resp.Answer)
	require.Equal(t, []string{"Which fiscal year?"}, resp.ClarifyingQuestions)
}

func TestFallbackClarityUnclear(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		`{"is_clear":false,"questions":["Which period do you mean?"]}`,
	)
	o := newFallbackOrchestrator(sc, dbexec.NewScriptedExecutor(), nil)

	resp := o.Run(context.Background(), fallbackRequest("show me the numbers"))

	require.Equal(t, contracts.StatusNeedClarification, resp.Status)
	require.Contains(t, resp.Answer, "more detail")
	require.Equal(t, []string{"Which period do you mean?"}, resp.ClarifyingQuestions)
}

func activeUsersTemplate() fastpath.QueryTemplate {
	return fastpath.QueryTemplate{
		Name:     "active_users_last_days",
		Intent:   "data_question",
		Keywords: []string{"active", "users", "last"},
		ParamPatterns: map[string]*regexp.Regexp{
			"days": regexp.MustCompile(`(?i)last\s+(?P<days>\d+)\s+days`),
		},
		RequiredParams: []string{"days"},
		SQLServer:      "SELECT TOP (50) day, active_users FROM usage_daily WHERE day >= DATEADD(day, -{days}, CAST(GETDATE() AS date))",
		DuckDB:         "SELECT day, active_users FROM usage_daily WHERE day >= current_date - INTERVAL '{days}' DAY",
		Description:    "Active users over the last N days.",
	}
}

func TestFallbackTemplateFastPath(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
		interpretOK,
	)
	exec := dbexec.NewScriptedExecutor()
	exec.QueueResult(salesResult())
	o := newFallbackOrchestrator(sc, exec, func(d *Deps) {
		d.Templates = []fastpath.QueryTemplate{activeUsersTemplate()}
	})

	resp := o.Run(context.Background(), fallbackRequest("show active users for the last 14 days"))

	require.Equal(t, contracts.StatusOK, resp.Status)
	require.Len(t, exec.SQL, 1)
	require.Equal(t,
		"SELECT day, active_users FROM usage_daily WHERE day >= current_date - INTERVAL '14' DAY LIMIT 50",
		exec.SQL[0])
	require.Len(t, sc.Calls, 3, "a template match skips SQL generation")
}

func TestFallbackTemplateMissingParamFailsClosed(t *testing.T) {
	t.Parallel()

	sc := llm.NewScriptedCompleter(
		intentDataQA,
		clarityClear,
	)
	exec := dbexec.NewScriptedExecutor()
	o := newFallbackOrchestrator(sc, exec, func(d *Deps) {
		d.Templates = []fastpath.QueryTemplate{activeUsersTemplate()}
	})

	resp := o.Run(context.Background(), fallbackRequest("show active users over the last few days"))

	require.Equal(t, contracts.StatusNeedClarification, resp.Status)
	require.Equal(t, []string{"What value should I use for days?"}, resp.ClarifyingQuestions)
	require.Empty(t, exec.SQL, "a template with missing required parameters never renders")
}

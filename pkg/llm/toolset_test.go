package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datamesa/assistant/pkg/contracts"
)

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	t.Run("parses_valid_response", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"intent":"analytics_report","confidence":0.9,"reason":"report request"}`))
		got, err := ts.ClassifyIntent(context.Background(), "build a monthly report", nil)
		require.NoError(t, err)
		require.Equal(t, contracts.IntentAnalyticsReport, got.Intent)
		require.InDelta(t, 0.9, got.Confidence, 1e-9)
	})

	t.Run("garbage_defaults_to_data_question", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter("I am not JSON"))
		got, err := ts.ClassifyIntent(context.Background(), "how many rows", nil)
		require.NoError(t, err)
		require.Equal(t, contracts.IntentDataQuestion, got.Intent)
	})

	t.Run("unknown_intent_defaults_to_data_question", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"intent":"BANANA"}`))
		got, err := ts.ClassifyIntent(context.Background(), "x", nil)
		require.NoError(t, err)
		require.Equal(t, contracts.IntentDataQuestion, got.Intent)
	})

	t.Run("llm_error_propagates", func(t *testing.T) {
		t.Parallel()
		sc := NewScriptedCompleter()
		sc.QueueError(errors.New("api down"))
		ts := NewToolset(sc)
		_, err := ts.ClassifyIntent(context.Background(), "x", nil)
		require.Error(t, err)
	})

	t.Run("exhausted_completer_classifies_as_tool_failure", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter())
		_, err := ts.ClassifyIntent(context.Background(), "x", nil)
		require.ErrorIs(t, err, contracts.ErrTool)
	})
}

func TestCheckClarity(t *testing.T) {
	t.Parallel()

	t.Run("unclear_with_questions", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"is_clear":false,"questions":["Which period?","Which region?"]}`))
		got, err := ts.CheckClarity(context.Background(), "show me the numbers", "", nil)
		require.NoError(t, err)
		require.False(t, got.IsClear)
		require.Len(t, got.Questions, 2)
	})

	t.Run("unparseable_defaults_to_clear", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter("???"))
		got, err := ts.CheckClarity(context.Background(), "x", "", nil)
		require.NoError(t, err)
		require.True(t, got.IsClear)
	})

	t.Run("questions_capped_at_five", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"is_clear":false,"questions":["1","2","3","4","5","6","7"]}`))
		got, err := ts.CheckClarity(context.Background(), "x", "", nil)
		require.NoError(t, err)
		require.Len(t, got.Questions, 5)
	})
}

func TestGenerateSQL(t *testing.T) {
	t.Parallel()

	t.Run("parses_dual_dialect_json", func(t *testing.T) {
		t.Parallel()
		sc := NewScriptedCompleter(`{"sql_server":"SELECT TOP (5) * FROM s.t;","sql_duckdb":"SELECT * FROM s.t LIMIT 5","used_tables":["s.t"],"notes":"simple"}`)
		ts := NewToolset(sc)
		plan, err := ts.GenerateSQL(context.Background(), "top five", "grounding", contracts.UISettings{MaxRows: 5, Backend: contracts.BackendSQLServer})
		require.NoError(t, err)
		require.Equal(t, "SELECT TOP (5) * FROM s.t", plan.SQLServer)
		require.Equal(t, "SELECT * FROM s.t LIMIT 5", plan.DuckDB)
		require.Equal(t, []string{"s.t"}, plan.UsedTables)
		require.True(t, sc.Calls[0].Cached, "generation should use prompt caching")
	})

	t.Run("falls_back_to_sql_code_block", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter("Here:\n```sql\nSELECT 1\n```"))
		plan, err := ts.GenerateSQL(context.Background(), "x", "", contracts.UISettings{})
		require.NoError(t, err)
		require.Equal(t, "SELECT 1", plan.SQLServer)
		require.Equal(t, "SELECT 1", plan.DuckDB)
	})

	t.Run("no_sql_is_an_error", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter("I cannot help with that"))
		_, err := ts.GenerateSQL(context.Background(), "x", "", contracts.UISettings{})
		require.Error(t, err)
	})
}

func TestTriageError(t *testing.T) {
	t.Parallel()

	t.Run("retry_with_patch", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"action":"RETRY_WITH_PATCH","patched_sql_server":"SELECT 2;","patched_sql_duckdb":"SELECT 2"}`))
		got, err := ts.TriageError(context.Background(), "q", "SELECT 1", "syntax error", "")
		require.NoError(t, err)
		require.Equal(t, TriageRetryWithPatch, got.Action)
		require.Equal(t, "SELECT 2", got.PatchedSQLServer)
	})

	t.Run("unknown_action_collapses_to_stop", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"action":"PANIC"}`))
		got, err := ts.TriageError(context.Background(), "q", "SELECT 1", "err", "")
		require.NoError(t, err)
		require.Equal(t, TriageStop, got.Action)
	})

	t.Run("garbage_collapses_to_stop", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter("shrug"))
		got, err := ts.TriageError(context.Background(), "q", "SELECT 1", "err", "")
		require.NoError(t, err)
		require.Equal(t, TriageStop, got.Action)
	})
}

func TestPlanReport(t *testing.T) {
	t.Parallel()

	t.Run("caps_queries_at_five", func(t *testing.T) {
		t.Parallel()
		resp := `{"title":"T","summary":"S","queries":[
			{"name":"q1","sql_server":"SELECT 1","sql_duckdb":"SELECT 1"},
			{"name":"q2","sql_server":"SELECT 2","sql_duckdb":"SELECT 2"},
			{"name":"q3","sql_server":"SELECT 3","sql_duckdb":"SELECT 3"},
			{"name":"q4","sql_server":"SELECT 4","sql_duckdb":"SELECT 4"},
			{"name":"q5","sql_server":"SELECT 5","sql_duckdb":"SELECT 5"},
			{"name":"q6","sql_server":"SELECT 6","sql_duckdb":"SELECT 6"}
		]}`
		ts := NewToolset(NewScriptedCompleter(resp))
		plan, err := ts.PlanReport(context.Background(), "report please", "")
		require.NoError(t, err)
		require.Len(t, plan.Queries, 5)
		require.Equal(t, "T", plan.Title)
		require.Equal(t, "none", plan.Queries[0].Chart.Type)
	})

	t.Run("empty_plan_gets_default_title", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter("not json"))
		plan, err := ts.PlanReport(context.Background(), "x", "")
		require.NoError(t, err)
		require.Equal(t, "Analytics Report", plan.Title)
		require.Empty(t, plan.Queries)
	})
}

func TestRouteIntent(t *testing.T) {
	t.Parallel()

	t.Run("none_becomes_empty_key", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"intent_key":"NONE","confidence":0.2}`))
		got, err := ts.RouteIntent(context.Background(), "CFO", "hello", []string{"finance_trend"}, nil)
		require.NoError(t, err)
		require.Equal(t, "", got.IntentKey)
	})

	t.Run("key_passes_through", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"intent_key":"finance_trend","confidence":0.8}`))
		got, err := ts.RouteIntent(context.Background(), "CFO", "revenue trend", []string{"finance_trend"}, nil)
		require.NoError(t, err)
		require.Equal(t, "finance_trend", got.IntentKey)
	})
}

func TestVizCode(t *testing.T) {
	t.Parallel()

	t.Run("none_chart_type_yields_empty_plan", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"chart_type":"none"}`))
		got, err := ts.VizCode(context.Background(), "x", []string{"a"}, nil)
		require.NoError(t, err)
		require.Equal(t, "none", got.ChartType)
		require.Empty(t, got.Code)
	})

	t.Run("code_plan_passes_through", func(t *testing.T) {
		t.Parallel()
		ts := NewToolset(NewScriptedCompleter(`{"chart_type":"LINE","title":"Trend","code":"fig = chart.line(x, y)"}`))
		got, err := ts.VizCode(context.Background(), "trend", []string{"month", "v"}, [][]any{{"2025-01", 1.0}})
		require.NoError(t, err)
		require.Equal(t, "line", got.ChartType)
		require.Equal(t, "fig = chart.line(x, y)", got.Code)
	})
}

func TestInterpretResult(t *testing.T) {
	t.Parallel()

	ts := NewToolset(NewScriptedCompleter(`{"answer":" Deposits grew. ","followups":["By branch?"]}`))
	got, err := ts.InterpretResult(context.Background(), "q", "SELECT 1", "a\tb", nil)
	require.NoError(t, err)
	require.Equal(t, "Deposits grew.", got.Answer)
	require.Equal(t, []string{"By branch?"}, got.Followups)
}

package availdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	s := NewStore("")
	s.Put("finance_monthly", &Frame{
		Columns: []string{"as_of_month", "net_revenue", "net_income", "churn_rate"},
		Rows: [][]any{
			{"2025-01", 100.0, 20.0, 0.10},
			{"2025-02", 110.0, 22.0, 0.12},
			{"2025-03", 120.0, 25.0, 0.11},
		},
	})
	s.Put("tech_weekly", &Frame{
		Columns: []string{"as_of_week", "uptime", "incident_count", "p95_latency_ms"},
		Rows: [][]any{
			{"2025-06-02", 0.999, 2.0, 180.0},
			{"2025-06-09", 0.998, 3.0, 190.0},
		},
	})
	return s
}

func testRegistry() *IntentRegistry {
	return NewIntentRegistry(map[string]IntentSpec{
		"finance_trend": {
			Dataset:         "finance_monthly",
			RequiredColumns: []string{"as_of_month", "net_revenue"},
			DefaultFilters:  map[string]any{"window_months": float64(2)},
		},
		"needs_missing_column": {
			Dataset:         "finance_monthly",
			RequiredColumns: []string{"nonexistent"},
		},
		"bad_window": {
			Dataset:        "finance_monthly",
			DefaultFilters: map[string]any{"window_months": float64(-1)},
		},
		"unmapped": {},
	})
}

func TestAnswerFromIntent(t *testing.T) {
	t.Parallel()

	eng := NewEngine(testStore(), testRegistry())

	t.Run("applies_window_and_reports_metrics", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromIntent("finance_trend")
		require.True(t, ans.OK)
		require.Equal(t, "finance_monthly", ans.Dataset)
		require.Equal(t, "as_of_month", ans.TimeCol)
		require.Equal(t, 2, ans.Frame.Len())
		require.Equal(t, "2025-02", ans.Frame.Rows[0][0])
		require.Contains(t, ans.MetricCols, "net_revenue")
		require.Contains(t, ans.MetricCols, "churn_rate")
	})

	t.Run("non_positive_window_keeps_full_frame", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromIntent("bad_window")
		require.True(t, ans.OK)
		require.Equal(t, 3, ans.Frame.Len())
	})

	t.Run("unknown_intent", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromIntent("nope")
		require.False(t, ans.OK)
		require.Equal(t, "Intent not found in registry", ans.Reason)
	})

	t.Run("intent_without_dataset", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromIntent("unmapped")
		require.False(t, ans.OK)
		require.Equal(t, "Intent has no dataset mapping", ans.Reason)
	})

	t.Run("missing_required_columns", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromIntent("needs_missing_column")
		require.False(t, ans.OK)
		require.Contains(t, ans.Reason, "Missing required columns")
		require.Contains(t, ans.Reason, "nonexistent")
	})
}

func TestAnswerFromFreeQuestion(t *testing.T) {
	t.Parallel()

	eng := NewEngine(testStore(), testRegistry())

	t.Run("synonym_match_picks_dataset", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromFreeQuestion("how is customer churn looking?")
		require.True(t, ans.OK)
		require.Equal(t, "finance_monthly", ans.Dataset)
		require.Contains(t, ans.MetricCols, "churn_rate")
		require.True(t, ans.Frame.HasColumn("as_of_month"))
	})

	t.Run("latency_routes_to_tech_dataset", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromFreeQuestion("what is our latency?")
		require.True(t, ans.OK)
		require.Equal(t, "tech_weekly", ans.Dataset)
		require.Contains(t, ans.MetricCols, "p95_latency_ms")
	})

	t.Run("no_match", func(t *testing.T) {
		t.Parallel()
		ans := eng.AnswerFromFreeQuestion("zzqx")
		require.False(t, ans.OK)
		require.Equal(t, "No suitable dataset/metric found", ans.Reason)
	})
}

func TestFindDatasetAndMetrics(t *testing.T) {
	t.Parallel()

	s := testStore()

	t.Run("synonyms_win_over_fuzzy", func(t *testing.T) {
		t.Parallel()
		m := FindDatasetAndMetrics(s, "show me revenue and net income")
		require.NotNil(t, m)
		require.Equal(t, "finance_monthly", m.Dataset)
		require.Contains(t, m.MetricCols, "net_revenue")
		require.Contains(t, m.MetricCols, "net_income")
	})

	t.Run("skips_datasets_without_time_column", func(t *testing.T) {
		t.Parallel()
		s2 := NewStore("")
		s2.Put("no_time", &Frame{
			Columns: []string{"uptime"},
			Rows:    [][]any{{0.99}},
		})
		m := FindDatasetAndMetrics(s2, "what is our uptime?")
		require.Nil(t, m)
	})

	t.Run("fuzzy_fallback_matches_column_name", func(t *testing.T) {
		t.Parallel()
		m := FindDatasetAndMetrics(s, "is the platform up time okay")
		require.NotNil(t, m)
		require.Equal(t, "tech_weekly", m.Dataset)
		require.Contains(t, m.MetricCols, "uptime")
	})
}

func TestForecastNextMonths(t *testing.T) {
	t.Parallel()

	t.Run("appends_two_forecast_rows", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "net_revenue"},
			Rows: [][]any{
				{"2025-01", 100.0},
				{"2025-02", 110.0},
				{"2025-03", 120.0},
			},
		}
		out, metrics := ForecastNextMonths(f, "as_of_month", []string{"net_revenue"}, 2, DefaultClampPolicy())
		require.Equal(t, []string{"net_revenue"}, metrics)
		require.True(t, out.HasColumn(ForecastFlagColumn))
		require.Equal(t, 5, out.Len())

		// slope is 10 per month from the tail, base 120
		last := out.Rows[out.Len()-1]
		ti := out.ColumnIndex("as_of_month")
		vi := out.ColumnIndex("net_revenue")
		fi := out.ColumnIndex(ForecastFlagColumn)
		require.Equal(t, "2025-05", last[ti])
		require.InDelta(t, 140.0, last[vi].(float64), 1e-9)
		require.Equal(t, true, last[fi])
		require.Equal(t, false, out.Rows[0][fi])
	})

	t.Run("clamps_fractional_metrics", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "churn_rate"},
			Rows: [][]any{
				{"2025-01", 0.5},
				{"2025-02", 0.9},
			},
		}
		out, metrics := ForecastNextMonths(f, "as_of_month", []string{"churn_rate"}, 2, DefaultClampPolicy())
		require.Equal(t, []string{"churn_rate"}, metrics)
		vi := out.ColumnIndex("churn_rate")
		last := out.Rows[out.Len()-1]
		require.InDelta(t, 1.0, last[vi].(float64), 1e-9)
	})

	t.Run("disabled_clamp_lets_values_run", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "churn_rate"},
			Rows: [][]any{
				{"2025-01", 0.5},
				{"2025-02", 0.9},
			},
		}
		out, _ := ForecastNextMonths(f, "as_of_month", []string{"churn_rate"}, 2, ClampPolicy{})
		vi := out.ColumnIndex("churn_rate")
		last := out.Rows[out.Len()-1]
		require.InDelta(t, 1.7, last[vi].(float64), 1e-9)
	})

	t.Run("non_monthly_time_column_is_untouched", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_week", "uptime"},
			Rows:    [][]any{{"2025-06-02", 0.999}},
		}
		out, metrics := ForecastNextMonths(f, "as_of_week", []string{"uptime"}, 2, DefaultClampPolicy())
		require.Empty(t, metrics)
		require.Equal(t, 1, out.Len())
		require.False(t, out.HasColumn(ForecastFlagColumn))
	})

	t.Run("forecasts_per_group", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "region", "net_revenue"},
			Rows: [][]any{
				{"2025-01", "north", 100.0},
				{"2025-02", "north", 110.0},
				{"2025-01", "south", 200.0},
				{"2025-02", "south", 220.0},
			},
		}
		out, _ := ForecastNextMonths(f, "as_of_month", []string{"net_revenue"}, 1, DefaultClampPolicy())
		fi := out.ColumnIndex(ForecastFlagColumn)
		forecasts := 0
		for _, r := range out.Rows {
			if r[fi] == true {
				forecasts++
			}
		}
		require.Equal(t, 2, forecasts)
	})
}

func TestSummaries(t *testing.T) {
	t.Parallel()

	t.Run("key_numbers_from_latest_row", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "net_revenue", "churn_rate", "lat"},
			Rows: [][]any{
				{"2025-01", 100.0, 0.10, 41.0},
				{"2025-02", 110.0, 0.12, 41.0},
			},
		}
		kn := KeyNumbers(f, "as_of_month")
		require.Len(t, kn, 2)
		require.Equal(t, "net_revenue", kn[0].Metric)
		require.InDelta(t, 110.0, kn[0].Value, 1e-9)
	})

	t.Run("key_numbers_capped_at_eight", func(t *testing.T) {
		t.Parallel()
		cols := []string{"as_of_month"}
		row := []any{"2025-01"}
		for i := 0; i < 10; i++ {
			cols = append(cols, string(rune('a'+i)))
			row = append(row, float64(i))
		}
		f := &Frame{Columns: cols, Rows: [][]any{row}}
		require.Len(t, KeyNumbers(f, "as_of_month"), 8)
	})

	t.Run("observations_report_relative_change", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "net_revenue"},
			Rows: [][]any{
				{"2025-01", 100.0},
				{"2025-03", 120.0},
			},
		}
		obs := Observations(f, "as_of_month", []string{"net_revenue"})
		require.Len(t, obs, 1)
		require.Contains(t, obs[0], "net_revenue increased by 20.0%")
	})

	t.Run("observations_skip_zero_baseline", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "v"},
			Rows: [][]any{
				{"2025-01", 0.0},
				{"2025-02", 5.0},
			},
		}
		require.Empty(t, Observations(f, "as_of_month", []string{"v"}))
	})
}

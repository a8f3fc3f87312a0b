package availdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func monthlyFrame() *Frame {
	return &Frame{
		Columns: []string{"as_of_month", "region", "net_revenue", "churn_rate", "lat"},
		Rows: [][]any{
			{"2025-01", "north", 100.0, 0.10, 41.0},
			{"2025-02", "north", 110.0, 0.12, 41.0},
			{"2025-03", "north", 120.0, 0.11, 41.0},
			{"2025-04", "north", 130.0, 0.13, 41.0},
		},
	}
}

func TestFrameBasics(t *testing.T) {
	t.Parallel()

	f := monthlyFrame()

	t.Run("column_index_and_lookup", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, 2, f.ColumnIndex("net_revenue"))
		require.Equal(t, -1, f.ColumnIndex("missing"))
		require.True(t, f.HasColumn("region"))
		require.False(t, f.HasColumn("missing"))
	})

	t.Run("numeric_columns_skip_coordinates", func(t *testing.T) {
		t.Parallel()
		cols := f.NumericColumns()
		require.Equal(t, []string{"net_revenue", "churn_rate"}, cols)
	})

	t.Run("select_keeps_order_and_rows", func(t *testing.T) {
		t.Parallel()
		sub := f.Select([]string{"as_of_month", "net_revenue"})
		require.Equal(t, []string{"as_of_month", "net_revenue"}, sub.Columns)
		require.Equal(t, 4, sub.Len())
		require.Equal(t, 100.0, sub.Rows[0][1])
	})

	t.Run("head_and_tail", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, 2, f.Head(2).Len())
		require.Equal(t, "2025-04", f.Tail(1).Rows[0][0])
	})

	t.Run("head_and_tail_clamp_out_of_range_counts", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, 0, f.Head(-1).Len())
		require.Equal(t, 0, f.Tail(-1).Len())
		require.Equal(t, f.Len(), f.Head(100).Len())
		require.Equal(t, f.Len(), f.Tail(100).Len())
	})

	t.Run("copy_is_independent", func(t *testing.T) {
		t.Parallel()
		c := f.Copy()
		c.Rows[0][2] = 999.0
		require.Equal(t, 100.0, f.Rows[0][2])
	})
}

func TestLatestWindow(t *testing.T) {
	t.Parallel()

	t.Run("keeps_latest_distinct_periods", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "v"},
			Rows: [][]any{
				{"2025-01", 1.0},
				{"2025-02", 2.0},
				{"2025-02", 3.0},
				{"2025-03", 4.0},
			},
		}
		w := f.LatestWindow("as_of_month", 2)
		require.Equal(t, 3, w.Len())
		require.Equal(t, "2025-02", w.Rows[0][0])
		require.Equal(t, "2025-03", w.Rows[2][0])
	})

	t.Run("falls_back_to_tail_without_time_column", func(t *testing.T) {
		t.Parallel()
		f := monthlyFrame()
		w := f.LatestWindow("nope", 2)
		require.Equal(t, 2, w.Len())
	})

	t.Run("drops_unparsable_times", func(t *testing.T) {
		t.Parallel()
		f := &Frame{
			Columns: []string{"as_of_month", "v"},
			Rows: [][]any{
				{"garbage", 1.0},
				{"2025-02", 2.0},
			},
		}
		w := f.LatestWindow("as_of_month", 5)
		require.Equal(t, 1, w.Len())
	})
}

func TestFilterContains(t *testing.T) {
	t.Parallel()

	f := &Frame{
		Columns: []string{"branch_name", "v"},
		Rows: [][]any{
			{"Downtown Central", 1.0},
			{"Uptown North", 2.0},
		},
	}
	got := f.FilterContains([]string{"branch_name"}, "downtown")
	require.Equal(t, 1, got.Len())
	require.Equal(t, "Downtown Central", got.Rows[0][0])
}

func TestCap(t *testing.T) {
	t.Parallel()

	t.Run("caps_rows_and_columns", func(t *testing.T) {
		t.Parallel()
		f := monthlyFrame()
		c := f.Cap(2, 3, false)
		require.Equal(t, 2, c.Len())
		require.Equal(t, []string{"as_of_month", "region", "net_revenue"}, c.Columns)
		require.Equal(t, "2025-01", c.Rows[0][0])
	})

	t.Run("preserve_recent_keeps_tail", func(t *testing.T) {
		t.Parallel()
		f := monthlyFrame()
		c := f.Cap(2, 0, true)
		require.Equal(t, "2025-03", c.Rows[0][0])
		require.Equal(t, "2025-04", c.Rows[1][0])
	})
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	cases := []string{"2025-06-15", "2025-06", "2025-06-15 10:30:00", "06/15/2025"}
	for _, s := range cases {
		_, ok := ParseTime(s)
		require.True(t, ok, "expected %q to parse", s)
	}
	_, ok := ParseTime("not a date")
	require.False(t, ok)
}

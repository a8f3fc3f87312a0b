// Package availdata answers questions from pre-loaded in-memory datasets,
// the fast lane that runs before any SQL generation.
package availdata

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ForecastFlagColumn marks rows synthesized by the forecast step.
const ForecastFlagColumn = "__is_forecast"

// Frame is a small rectangular table. Datasets here are summarized and
// bounded (a few thousand rows at most), so everything stays in memory.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Len returns the row count.
func (f *Frame) Len() int { return len(f.Rows) }

// ColumnIndex returns the position of a column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the column exists.
func (f *Frame) HasColumn(name string) bool { return f.ColumnIndex(name) >= 0 }

// Column returns the values of one column, or nil if absent.
func (f *Frame) Column(name string) []any {
	i := f.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]any, 0, len(f.Rows))
	for _, r := range f.Rows {
		out = append(out, r[i])
	}
	return out
}

// AsFloat coerces a cell value to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		return 0, false
	}
	return 0, false
}

// IsNumericColumn reports whether every non-nil value in the column is
// numeric (and at least one value is present).
func (f *Frame) IsNumericColumn(name string) bool {
	i := f.ColumnIndex(name)
	if i < 0 {
		return false
	}
	seen := false
	for _, r := range f.Rows {
		v := r[i]
		if v == nil {
			continue
		}
		if _, ok := AsFloat(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// NumericColumns lists numeric columns, excluding coordinates and internal
// markers.
func (f *Frame) NumericColumns() []string {
	var out []string
	for _, c := range f.Columns {
		if c == "lat" || c == "lon" || strings.HasPrefix(c, "__") {
			continue
		}
		if f.IsNumericColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Select returns a copy containing only the named columns that exist, in
// the given order.
func (f *Frame) Select(names []string) *Frame {
	var idx []int
	var cols []string
	for _, n := range names {
		if i := f.ColumnIndex(n); i >= 0 {
			idx = append(idx, i)
			cols = append(cols, n)
		}
	}
	rows := make([][]any, 0, len(f.Rows))
	for _, r := range f.Rows {
		row := make([]any, len(idx))
		for j, i := range idx {
			row[j] = r[i]
		}
		rows = append(rows, row)
	}
	return &Frame{Columns: cols, Rows: rows}
}

// Head returns a copy of the first n rows. n is clamped to [0, Len].
func (f *Frame) Head(n int) *Frame {
	n = clampCount(n, len(f.Rows))
	return &Frame{Columns: append([]string(nil), f.Columns...), Rows: copyRows(f.Rows[:n])}
}

// Tail returns a copy of the last n rows. n is clamped to [0, Len].
func (f *Frame) Tail(n int) *Frame {
	n = clampCount(n, len(f.Rows))
	return &Frame{Columns: append([]string(nil), f.Columns...), Rows: copyRows(f.Rows[len(f.Rows)-n:])}
}

func clampCount(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// Copy returns a deep-enough copy (cells are shared, rows are not).
func (f *Frame) Copy() *Frame {
	return &Frame{Columns: append([]string(nil), f.Columns...), Rows: copyRows(f.Rows)}
}

func copyRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// WithColumn returns a copy with the named column appended (or untouched if
// it already exists), every row filled with def.
func (f *Frame) WithColumn(name string, def any) *Frame {
	if f.HasColumn(name) {
		return f.Copy()
	}
	out := &Frame{Columns: append(append([]string(nil), f.Columns...), name)}
	for _, r := range f.Rows {
		out.Rows = append(out.Rows, append(append([]any(nil), r...), def))
	}
	return out
}

// FilterContains keeps rows where any of the named columns contains the
// token, case-insensitively.
func (f *Frame) FilterContains(columns []string, token string) *Frame {
	token = strings.ToLower(token)
	var idx []int
	for _, c := range columns {
		if i := f.ColumnIndex(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	for _, r := range f.Rows {
		for _, i := range idx {
			if r[i] == nil {
				continue
			}
			if strings.Contains(strings.ToLower(toString(r[i])), token) {
				out.Rows = append(out.Rows, append([]any(nil), r...))
				break
			}
		}
	}
	return out
}

// Cap bounds the frame for display. Columns beyond maxCols are dropped
// from the right; preserveRecent keeps the newest rows instead of the
// first ones (used when forecast rows sit at the end).
func (f *Frame) Cap(maxRows, maxCols int, preserveRecent bool) *Frame {
	out := f
	if maxCols > 0 && len(out.Columns) > maxCols {
		out = out.Select(out.Columns[:maxCols])
	}
	if maxRows > 0 && out.Len() > maxRows {
		if preserveRecent {
			out = out.Tail(maxRows)
		} else {
			out = out.Head(maxRows)
		}
	}
	return out.Copy()
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"01/02/2006",
}

// ParseTime interprets a cell value as a point in time.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// SortByTime returns a copy sorted ascending by the parsed time column.
// Rows whose time cannot be parsed are dropped.
func (f *Frame) SortByTime(timeCol string) *Frame {
	i := f.ColumnIndex(timeCol)
	if i < 0 {
		return f.Copy()
	}
	type keyed struct {
		t   time.Time
		row []any
	}
	var ks []keyed
	for _, r := range f.Rows {
		if t, ok := ParseTime(r[i]); ok {
			ks = append(ks, keyed{t: t, row: append([]any(nil), r...)})
		}
	}
	sort.SliceStable(ks, func(a, b int) bool { return ks[a].t.Before(ks[b].t) })
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	for _, k := range ks {
		out.Rows = append(out.Rows, k.row)
	}
	return out
}

// LatestWindow keeps the rows belonging to the latest windowSize distinct
// time values, sorted ascending. Falls back to Tail when the time column is
// unusable.
func (f *Frame) LatestWindow(timeCol string, windowSize int) *Frame {
	i := f.ColumnIndex(timeCol)
	if i < 0 || windowSize <= 0 {
		return f.Tail(windowSize)
	}
	sorted := f.SortByTime(timeCol)
	if sorted.Len() == 0 {
		return f.Tail(windowSize)
	}

	var distinct []time.Time
	for _, r := range sorted.Rows {
		t, _ := ParseTime(r[i])
		if len(distinct) == 0 || !t.Equal(distinct[len(distinct)-1]) {
			distinct = append(distinct, t)
		}
	}
	if len(distinct) > windowSize {
		distinct = distinct[len(distinct)-windowSize:]
	}
	keep := map[time.Time]bool{}
	for _, t := range distinct {
		keep[t] = true
	}

	out := &Frame{Columns: append([]string(nil), sorted.Columns...)}
	for _, r := range sorted.Rows {
		t, _ := ParseTime(r[i])
		if keep[t] {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

package availdata

import (
	"strings"
	"time"
)

// ClampPolicy bounds forecast values for fractional metrics (names
// containing rate/pct/ratio). Extrapolated fractions drifting outside
// [0,1] read as nonsense, so the default clamps.
type ClampPolicy struct {
	Enabled bool
	Min     float64
	Max     float64
}

func DefaultClampPolicy() ClampPolicy {
	return ClampPolicy{Enabled: true, Min: 0, Max: 1}
}

func (p ClampPolicy) apply(metric string, v float64) float64 {
	if !p.Enabled {
		return v
	}
	if !isFractionalName(metric) {
		return v
	}
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// IsTrendRequest reports whether the question asks for a trend or forecast.
func IsTrendRequest(text string) bool {
	t := strings.ToLower(text)
	for _, k := range []string{"trend", "forecast", "predict", "projection", "next month", "next two month", "next 2 month"} {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func isFractionalName(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "rate") || strings.Contains(n, "pct") || strings.Contains(n, "ratio")
}

func parseTimeWithLayout(v any) (time.Time, string, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, "", true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, layout, true
			}
		}
	}
	return time.Time{}, "", false
}

// ForecastNextMonths appends `periods` forecast rows per group, derived
// from the linear slope of each metric's last six points. Only monthly
// time columns qualify; anything else returns the input untouched.
// Returned metrics name the columns that were actually extrapolated, and
// every row in the result carries the __is_forecast flag column.
func ForecastNextMonths(f *Frame, timeCol string, metricCols []string, periods int, clamp ClampPolicy) (*Frame, []string) {
	if f == nil || f.Len() == 0 || timeCol == "" || !f.HasColumn(timeCol) || periods <= 0 {
		return f, nil
	}
	if !strings.Contains(strings.ToLower(timeCol), "month") {
		return f, nil
	}

	dd := f.SortByTime(timeCol)
	if dd.Len() == 0 {
		return f, nil
	}

	var usable []string
	for _, m := range metricCols {
		if m == "lat" || m == "lon" {
			continue
		}
		if dd.HasColumn(m) && dd.IsNumericColumn(m) {
			usable = append(usable, m)
		}
	}
	if len(usable) == 0 {
		return dd, nil
	}
	usableSet := map[string]bool{}
	for _, m := range usable {
		usableSet[m] = true
	}

	// Group by the remaining non-numeric dimension columns.
	var groupCols []string
	for _, c := range dd.Columns {
		if c == timeCol || usableSet[c] || dd.IsNumericColumn(c) {
			continue
		}
		groupCols = append(groupCols, c)
	}

	timeIdx := dd.ColumnIndex(timeCol)
	groupIdx := make([]int, len(groupCols))
	for i, c := range groupCols {
		groupIdx[i] = dd.ColumnIndex(c)
	}
	metricIdx := make([]int, len(usable))
	for i, m := range usable {
		metricIdx[i] = dd.ColumnIndex(m)
	}

	type bucket struct {
		sum   []float64
		count []int
	}
	type group struct {
		vals    []any
		times   []time.Time
		layout  string
		perTime map[time.Time]*bucket
	}

	var order []string
	groups := map[string]*group{}
	for _, row := range dd.Rows {
		t, layout, ok := parseTimeWithLayout(row[timeIdx])
		if !ok {
			continue
		}
		key := ""
		vals := make([]any, len(groupIdx))
		for i, gi := range groupIdx {
			vals[i] = row[gi]
			key += "\x00" + toString(row[gi])
		}
		g, ok := groups[key]
		if !ok {
			g = &group{vals: vals, perTime: map[time.Time]*bucket{}}
			groups[key] = g
			order = append(order, key)
		}
		g.layout = layout
		b, ok := g.perTime[t]
		if !ok {
			b = &bucket{sum: make([]float64, len(usable)), count: make([]int, len(usable))}
			g.perTime[t] = b
			g.times = append(g.times, t)
		}
		for i, mi := range metricIdx {
			if v, ok := AsFloat(row[mi]); ok {
				b.sum[i] += v
				b.count[i]++
			}
		}
	}

	// Forecast rows share the input schema plus the flag column.
	cols := append([]string(nil), dd.Columns...)
	if !dd.HasColumn(ForecastFlagColumn) {
		cols = append(cols, ForecastFlagColumn)
	}
	out := &Frame{Columns: cols}
	flagIdx := out.ColumnIndex(ForecastFlagColumn)
	for _, row := range dd.Rows {
		r := make([]any, len(cols))
		copy(r, row)
		if flagIdx >= len(row) {
			r[flagIdx] = false
		} else if r[flagIdx] == nil {
			r[flagIdx] = false
		}
		out.Rows = append(out.Rows, r)
	}

	wrote := false
	for _, key := range order {
		g := groups[key]
		if len(g.times) == 0 {
			continue
		}
		lastTime := g.times[len(g.times)-1]

		// Per metric: slope over the tail of up to six mean points.
		base := map[string]float64{}
		slope := map[string]float64{}
		for i, m := range usable {
			var y []float64
			for _, t := range g.times {
				b := g.perTime[t]
				if b.count[i] > 0 {
					y = append(y, b.sum[i]/float64(b.count[i]))
				}
			}
			if len(y) == 0 {
				continue
			}
			if len(y) > 6 {
				y = y[len(y)-6:]
			}
			base[m] = y[len(y)-1]
			if len(y) >= 2 {
				slope[m] = (y[len(y)-1] - y[0]) / float64(len(y)-1)
			} else {
				slope[m] = 0
			}
		}
		if len(base) == 0 {
			continue
		}

		for step := 1; step <= periods; step++ {
			r := make([]any, len(cols))
			t := lastTime.AddDate(0, step, 0)
			if g.layout != "" {
				r[timeIdx] = t.Format(g.layout)
			} else {
				r[timeIdx] = t
			}
			for i, gi := range groupIdx {
				r[gi] = g.vals[i]
			}
			for i, m := range usable {
				if b, ok := base[m]; ok {
					r[metricIdx[i]] = clamp.apply(m, b+slope[m]*float64(step))
				}
			}
			r[flagIdx] = true
			out.Rows = append(out.Rows, r)
			wrote = true
		}
	}

	if !wrote {
		return dd, nil
	}
	return out.SortByTime(timeCol), usable
}

package availdata

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// KeyNumber is a headline metric pulled from the latest row.
type KeyNumber struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// KeyNumbers extracts up to eight numeric values from the latest row,
// largest magnitude first. Coordinates and internal flag columns are
// skipped.
func KeyNumbers(f *Frame, timeCol string) []KeyNumber {
	if f == nil || f.Len() == 0 {
		return nil
	}
	latest := f.Rows[f.Len()-1]

	var out []KeyNumber
	for i, c := range f.Columns {
		if c == timeCol || strings.HasPrefix(c, "__") || c == "lat" || c == "lon" {
			continue
		}
		if _, isBool := latest[i].(bool); isBool {
			continue
		}
		if v, ok := AsFloat(latest[i]); ok {
			out = append(out, KeyNumber{Metric: c, Value: v})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Value) > math.Abs(out[b].Value)
	})
	if len(out) > 8 {
		out = out[:8]
	}
	return out
}

// Observations compares first vs last point for up to two metrics over the
// current window and phrases the relative change.
func Observations(f *Frame, timeCol string, metricCols []string) []string {
	var obs []string
	if timeCol == "" || f == nil || f.Len() == 0 {
		return obs
	}
	d := f.SortByTime(timeCol)
	if d.Len() == 0 {
		d = f
	}

	n := 0
	for _, m := range metricCols {
		if n >= 2 {
			break
		}
		n++
		if !d.HasColumn(m) || !d.IsNumericColumn(m) {
			continue
		}
		series := d.Column(m)
		first, ok1 := AsFloat(series[0])
		last, ok2 := AsFloat(series[len(series)-1])
		if !ok1 || !ok2 || first == 0 {
			continue
		}
		pct := (last - first) / math.Abs(first)
		direction := "increased"
		if pct < 0 {
			direction = "decreased"
		}
		obs = append(obs, fmt.Sprintf("%s %s by %.1f%% over the selected period.", m, direction, pct*100))
	}
	return obs
}

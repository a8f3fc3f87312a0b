// Package viz renders declarative chart specs into the structured Chart
// object handed back to the host. The core never rasterizes; drawing is
// the host's job.
package viz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datamesa/assistant/pkg/contracts"
)

// RenderChart builds a Chart from a result table and a spec. Returns nil
// when the spec is "none", the table is empty, or no numeric y column can
// be resolved. Missing x/y fall back to the first two columns.
func RenderChart(result *contracts.QueryResult, spec contracts.ChartSpec) *contracts.Chart {
	if result == nil || len(result.Columns) == 0 || len(result.Rows) == 0 {
		return nil
	}
	chartType := strings.ToLower(spec.Type)
	if chartType == "" || chartType == "none" {
		return nil
	}
	switch chartType {
	case "line", "bar", "pie", "scatter":
	default:
		return nil
	}

	cols := result.Columns
	xCol := spec.X
	if indexOf(cols, xCol) < 0 {
		xCol = cols[0]
	}
	yCol := spec.Y
	if indexOf(cols, yCol) < 0 {
		if len(cols) < 2 {
			return nil
		}
		yCol = cols[1]
	}

	xi := indexOf(cols, xCol)
	yi := indexOf(cols, yCol)

	var xs []string
	var ys []float64
	for _, row := range result.Rows {
		y, ok := asFloat(row[yi])
		if !ok {
			continue
		}
		xs = append(xs, asString(row[xi]))
		ys = append(ys, y)
	}
	if len(ys) == 0 {
		return nil
	}

	out := contracts.ChartSpec{
		Type:  chartType,
		X:     xCol,
		Y:     yCol,
		Title: spec.Title,
	}
	return &contracts.Chart{
		Spec:    out,
		XValues: xs,
		Series:  []contracts.ChartSeries{{Name: yCol, Values: ys}},
	}
}

func indexOf(cols []string, name string) int {
	if name == "" {
		return -1
	}
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

package sandbox

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datamesa/assistant/pkg/contracts"
)

// Table is the bounded result table handed to a script.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (t Table) column(name string) ([]any, bool) {
	for i, c := range t.Columns {
		if c == name {
			out := make([]any, len(t.Rows))
			for j, r := range t.Rows {
				out[j] = r[i]
			}
			return out, true
		}
	}
	return nil, false
}

// interp evaluates the restricted chart script language: one statement per
// line, each of the form `name = expression`. Expressions are literals,
// variables, data["col"] lookups, len/min/max/sum calls, and chart.*
// constructors. The final chart must land in `fig`; if the script built
// exactly one chart under another name, that chart is used instead.
type interp struct {
	table     Table
	vars      map[string]any
	lastChart *contracts.Chart
	charts    int
}

// Run executes the script against the table and returns the chart.
func Run(code string, table Table) (*contracts.Chart, error) {
	in := &interp{table: table, vars: map[string]any{}}

	for lineNo, raw := range strings.Split(code, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, expr, ok := splitAssign(line)
		if !ok {
			return nil, fmt.Errorf("line %d: expected `name = expression`", lineNo+1)
		}
		v, err := in.eval(expr)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		in.vars[name] = v
	}

	if v, ok := in.vars["fig"]; ok {
		if c, ok := v.(*contracts.Chart); ok {
			return c, nil
		}
		return nil, fmt.Errorf("fig is not a chart")
	}
	// Scripts that drew a single chart but forgot the fig assignment still
	// produce that chart.
	if in.charts == 1 {
		return in.lastChart, nil
	}
	return nil, fmt.Errorf("no chart assigned to fig")
}

func splitAssign(line string) (name, expr string, ok bool) {
	i := strings.Index(line, "=")
	if i <= 0 || (i+1 < len(line) && line[i+1] == '=') {
		return "", "", false
	}
	name = strings.TrimSpace(line[:i])
	expr = strings.TrimSpace(line[i+1:])
	if !isIdent(name) || expr == "" {
		return "", "", false
	}
	return name, expr, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (in *interp) eval(expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	// String literal
	if len(expr) >= 2 && (expr[0] == '"' || expr[0] == '\'') && expr[len(expr)-1] == expr[0] {
		return unescape(expr[1 : len(expr)-1]), nil
	}

	// Number literal
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, nil
	}

	// data["col"]
	if strings.HasPrefix(expr, "data[") && strings.HasSuffix(expr, "]") {
		inner := strings.TrimSpace(expr[5 : len(expr)-1])
		if len(inner) < 2 || (inner[0] != '"' && inner[0] != '\'') || inner[len(inner)-1] != inner[0] {
			return nil, fmt.Errorf("data index must be a quoted column name")
		}
		name := inner[1 : len(inner)-1]
		col, ok := in.table.column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column: %s", name)
		}
		return col, nil
	}

	// Call: receiver(args)
	if open := strings.Index(expr, "("); open > 0 && strings.HasSuffix(expr, ")") {
		receiver := strings.TrimSpace(expr[:open])
		args, kwargs, err := in.evalArgs(expr[open+1 : len(expr)-1])
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(receiver, "chart.") {
			return in.buildChart(strings.TrimPrefix(receiver, "chart."), args, kwargs)
		}
		return callBuiltin(receiver, args)
	}

	// Variable reference
	if isIdent(expr) {
		if v, ok := in.vars[expr]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("undefined variable: %s", expr)
	}

	return nil, fmt.Errorf("unsupported expression: %s", expr)
}

// unescape resolves backslash escapes inside a string literal.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// evalArgs splits a call argument list at top-level commas and evaluates
// positional and keyword arguments. String escapes are honored the same
// way the static scan honors them.
func (in *interp) evalArgs(list string) ([]any, map[string]any, error) {
	var args []any
	kwargs := map[string]any{}

	depth := 0
	inString := false
	var quote byte
	start := 0
	parts := []string{}
	for i := 0; i < len(list); i++ {
		c := list[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(list) != "" {
		parts = append(parts, list[start:])
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.Index(part, "="); eq > 0 && isIdent(strings.TrimSpace(part[:eq])) {
			v, err := in.eval(part[eq+1:])
			if err != nil {
				return nil, nil, err
			}
			kwargs[strings.TrimSpace(part[:eq])] = v
			continue
		}
		v, err := in.eval(part)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v)
	}
	return args, kwargs, nil
}

func (in *interp) buildChart(kind string, args []any, kwargs map[string]any) (*contracts.Chart, error) {
	switch kind {
	case "line", "bar", "pie", "scatter":
	default:
		return nil, fmt.Errorf("unknown chart type: %s", kind)
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("chart.%s expects (x, y)", kind)
	}
	xs, err := toStrings(args[0])
	if err != nil {
		return nil, fmt.Errorf("chart.%s x: %w", kind, err)
	}
	ys, err := toFloats(args[1])
	if err != nil {
		return nil, fmt.Errorf("chart.%s y: %w", kind, err)
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("chart.%s: x and y lengths differ (%d vs %d)", kind, len(xs), len(ys))
	}

	title := ""
	if t, ok := kwargs["title"].(string); ok {
		title = t
	}
	c := &contracts.Chart{
		Spec:    contracts.ChartSpec{Type: kind, Title: title},
		XValues: xs,
		Series:  []contracts.ChartSeries{{Name: "y", Values: ys}},
	}
	in.lastChart = c
	in.charts++
	return c, nil
}

func callBuiltin(name string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects one argument", name)
	}
	switch name {
	case "len":
		col, err := toColumn(args[0])
		if err != nil {
			return nil, err
		}
		return float64(len(col)), nil
	case "sum":
		vals, err := toFloats(args[0])
		if err != nil {
			return nil, err
		}
		out := 0.0
		for _, v := range vals {
			out += v
		}
		return out, nil
	case "min", "max":
		vals, err := toFloats(args[0])
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("%s of empty column", name)
		}
		out := vals[0]
		for _, v := range vals[1:] {
			if (name == "min" && v < out) || (name == "max" && v > out) {
				out = v
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown function: %s", name)
}

func toColumn(v any) ([]any, error) {
	if col, ok := v.([]any); ok {
		return col, nil
	}
	return nil, fmt.Errorf("expected a column")
}

func toStrings(v any) ([]string, error) {
	col, err := toColumn(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(col))
	for i, c := range col {
		if c == nil {
			out[i] = ""
			continue
		}
		if s, ok := c.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprintf("%v", c)
	}
	return out, nil
}

func toFloats(v any) ([]float64, error) {
	col, err := toColumn(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, c := range col {
		switch x := c.(type) {
		case float64:
			out[i] = x
		case float32:
			out[i] = float64(x)
		case int:
			out[i] = float64(x)
		case int64:
			out[i] = float64(x)
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("non-numeric value %q", x)
			}
			out[i] = f
		default:
			return nil, fmt.Errorf("non-numeric value %v", c)
		}
	}
	return out, nil
}

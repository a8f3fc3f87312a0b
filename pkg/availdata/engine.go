package availdata

import "fmt"

// AvailableAnswer is the outcome of answering from in-memory datasets.
// OK=false means the fast lane could not serve the question; Reason says
// why so the caller can ask for confirmation instead of guessing.
type AvailableAnswer struct {
	OK         bool
	Reason     string
	Dataset    string
	Frame      *Frame
	TimeCol    string
	MetricCols []string
}

// Engine answers questions from the available datasets. Datasets are
// summarized already, so we never aggregate; filtering and windowing
// (latest date, last N periods) are the only transforms applied.
type Engine struct {
	store    *Store
	registry *IntentRegistry
}

func NewEngine(store *Store, registry *IntentRegistry) *Engine {
	return &Engine{store: store, registry: registry}
}

// AnswerFromIntent resolves a registered intent to its dataset, checks the
// required columns, and applies the intent's default window.
func (e *Engine) AnswerFromIntent(intentKey string) AvailableAnswer {
	spec, ok := e.registry.Get(intentKey)
	if !ok {
		return AvailableAnswer{Reason: "Intent not found in registry"}
	}

	ds := spec.Dataset
	if ds == "" {
		return AvailableAnswer{Reason: "Intent has no dataset mapping"}
	}
	if !e.store.HasDataset(ds) {
		return AvailableAnswer{Reason: fmt.Sprintf("Dataset not available: %s", ds), Dataset: ds}
	}

	f, err := e.store.GetFrame(ds)
	if err != nil {
		return AvailableAnswer{Reason: fmt.Sprintf("Failed to load dataset: %v", err), Dataset: ds}
	}

	var missing []string
	for _, c := range spec.RequiredColumns {
		if !f.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return AvailableAnswer{Reason: fmt.Sprintf("Missing required columns: %v", missing), Dataset: ds}
	}

	timeCol := ""
	for _, tc := range []string{"as_of_date", "as_of_week", "as_of_month"} {
		if f.HasColumn(tc) {
			timeCol = tc
			break
		}
	}

	out := f
	if timeCol != "" {
		if n, ok := filterInt(spec.DefaultFilters, "window_months"); ok {
			out = f.LatestWindow(timeCol, n)
		} else if n, ok := filterInt(spec.DefaultFilters, "window_weeks"); ok {
			out = f.LatestWindow(timeCol, n)
		} else if n, ok := filterInt(spec.DefaultFilters, "window_days"); ok {
			out = f.LatestWindow(timeCol, n)
		} else if v, ok := spec.DefaultFilters[timeCol]; ok && v == "LATEST" {
			out = f.LatestWindow(timeCol, 1)
		}
	}

	metrics := out.NumericColumns()

	return AvailableAnswer{
		OK:         true,
		Reason:     "ok",
		Dataset:    ds,
		Frame:      out,
		TimeCol:    timeCol,
		MetricCols: metrics,
	}
}

// AnswerFromFreeQuestion handles questions with no registered intent by
// scanning the catalog for a matching dataset and metric columns.
func (e *Engine) AnswerFromFreeQuestion(question string) AvailableAnswer {
	match := FindDatasetAndMetrics(e.store, question)
	if match == nil {
		return AvailableAnswer{Reason: "No suitable dataset/metric found"}
	}

	f, err := e.store.GetFrame(match.Dataset)
	if err != nil {
		return AvailableAnswer{Reason: fmt.Sprintf("Failed to load dataset: %v", err), Dataset: match.Dataset}
	}

	// Default window: last 12 points.
	out := f.LatestWindow(match.TimeCol, 12)

	keep := append([]string{match.TimeCol}, match.MetricCols...)
	for _, c := range []string{"lat", "lon", "branch_name", "region", "product", "service"} {
		if out.HasColumn(c) && !contains(keep, c) {
			keep = append(keep, c)
		}
	}
	out = out.Select(keep)

	return AvailableAnswer{
		OK:         true,
		Reason:     match.Reason,
		Dataset:    match.Dataset,
		Frame:      out,
		TimeCol:    match.TimeCol,
		MetricCols: match.MetricCols,
	}
}

// filterInt reads a positive integer window from the filters. Zero and
// negative values are treated as absent rather than emptying the frame.
func filterInt(filters map[string]any, key string) (int, bool) {
	v, ok := filters[key]
	if !ok {
		return 0, false
	}
	if f, ok := AsFloat(v); ok && f >= 1 {
		return int(f), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

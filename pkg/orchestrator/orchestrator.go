// Package orchestrator sequences one chat turn end to end: the
// available-data lane answers from pre-loaded datasets first, and the
// guardrailed SQL/RAG fallback lane runs only on explicit user
// confirmation. Every collaborator call is bounded and every failure
// resolves to one of the terminal response statuses.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/datamesa/assistant/pkg/availdata"
	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/dbexec"
	"github.com/datamesa/assistant/pkg/fastpath"
	"github.com/datamesa/assistant/pkg/llm"
	"github.com/datamesa/assistant/pkg/logger"
	"github.com/datamesa/assistant/pkg/policy"
	"github.com/datamesa/assistant/pkg/sandbox"
	"github.com/datamesa/assistant/pkg/search"
	"github.com/datamesa/assistant/pkg/trace"
	"github.com/datamesa/assistant/pkg/viz"
)

const (
	defaultMaxRows        = 50
	defaultMaxCols        = 12
	defaultTimeoutSeconds = 30

	groundingTopK = 8

	// builtInMatchThreshold is the fuzzy-similarity floor for routing a
	// question onto a built-in question's intent without a model call.
	builtInMatchThreshold = 0.86
)

// Deps wires the orchestrator's collaborators. Tools, Searcher and
// Executor are required; everything else has a working default.
type Deps struct {
	Tools    *llm.Toolset
	Searcher search.Searcher
	Executor dbexec.Executor

	// Tables gates which tables a generated plan may touch; nil skips the
	// check. DeniedTables is handed to the policy as input.
	Tables       *policy.TableAccessPolicy
	DeniedTables []string

	Sandbox *sandbox.Runner

	Store    *availdata.Store
	Intents  *availdata.IntentRegistry
	BuiltIns []availdata.BuiltInQuestion

	Templates []fastpath.QueryTemplate

	MaxRetryAttempts  int
	TemplateThreshold float64
	Clamp             availdata.ClampPolicy

	Logger *slog.Logger
}

// Orchestrator owns the per-turn pipeline. It is safe for concurrent use:
// all request-scoped state lives in the turn context, and the registries
// and templates are read-only after New.
type Orchestrator struct {
	tools    *llm.Toolset
	searcher search.Searcher
	executor dbexec.Executor

	sqlPolicy    policy.SqlPolicy
	limits       policy.LimitsPolicy
	tables       *policy.TableAccessPolicy
	deniedTables []string

	sandbox *sandbox.Runner

	engine   *availdata.Engine
	intents  *availdata.IntentRegistry
	builtIns []availdata.BuiltInQuestion

	templates []fastpath.QueryTemplate
	threshold float64

	maxRetryAttempts int
	clamp            availdata.ClampPolicy

	log *slog.Logger
}

// New builds an orchestrator from its collaborators, filling defaults
// for anything unset.
func New(d Deps) *Orchestrator {
	if d.MaxRetryAttempts <= 0 {
		d.MaxRetryAttempts = 5
	}
	if d.TemplateThreshold <= 0 {
		d.TemplateThreshold = fastpath.DefaultThreshold
	}
	if d.Clamp == (availdata.ClampPolicy{}) {
		d.Clamp = availdata.DefaultClampPolicy()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Intents == nil {
		d.Intents = availdata.NewIntentRegistry(nil)
	}
	if d.Store == nil {
		d.Store = availdata.NewStore("")
	}
	return &Orchestrator{
		tools:            d.Tools,
		searcher:         d.Searcher,
		executor:         d.Executor,
		sqlPolicy:        policy.NewSqlPolicy(),
		limits:           policy.NewLimitsPolicy(),
		tables:           d.Tables,
		deniedTables:     d.DeniedTables,
		sandbox:          d.Sandbox,
		engine:           availdata.NewEngine(d.Store, d.Intents),
		intents:          d.Intents,
		builtIns:         d.BuiltIns,
		templates:        d.Templates,
		threshold:        d.TemplateThreshold,
		maxRetryAttempts: d.MaxRetryAttempts,
		clamp:            d.Clamp,
		log:              d.Logger,
	}
}

var greetingSet = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
	"morning": {}, "afternoon": {}, "evening": {},
}

func isGreeting(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if _, ok := greetingSet[t]; ok {
		return true
	}
	if len(t) <= 20 {
		for _, g := range []string{"hi", "hello", "good morning", "good evening"} {
			if strings.Contains(t, g) {
				return true
			}
		}
	}
	return false
}

func roleFrom(meta *contracts.RequestMeta) string {
	if meta == nil {
		return "CEO"
	}
	role := strings.ToUpper(strings.TrimSpace(meta.Role))
	switch role {
	case "CEO", "CFO", "CTO":
		return role
	}
	return "CEO"
}

var (
	branchBeforeRe = regexp.MustCompile(`(?i)\b([A-Za-z]{2,})\s+branch\b`)
	branchAfterRe  = regexp.MustCompile(`(?i)\bbranch\s+([A-Za-z0-9_-]{2,})\b`)

	// Words that precede "branch" without naming one.
	branchStopwords = map[string]bool{
		"is": true, "the": true, "a": true, "an": true, "any": true,
		"which": true, "what": true, "that": true, "this": true,
		"each": true, "every": true, "per": true, "our": true, "my": true,
	}
)

func extractBranchToken(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if m := branchBeforeRe.FindStringSubmatch(t); m != nil {
		tok := strings.TrimSpace(m[1])
		if !branchStopwords[strings.ToLower(tok)] {
			return tok
		}
	}
	if m := branchAfterRe.FindStringSubmatch(t); m != nil {
		tok := strings.TrimSpace(m[1])
		if !branchStopwords[strings.ToLower(tok)] {
			return tok
		}
	}
	return ""
}

// similarity is a normalized [0,1] Levenshtein ratio, case-insensitive.
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(max)
}

func normalizeUI(ui contracts.UISettings) contracts.UISettings {
	if ui.MaxRows <= 0 {
		ui.MaxRows = defaultMaxRows
	}
	if ui.MaxCols <= 0 {
		ui.MaxCols = defaultMaxCols
	}
	if ui.MaxExecSeconds <= 0 {
		ui.MaxExecSeconds = defaultTimeoutSeconds
	}
	if ui.Backend == "" {
		ui.Backend = contracts.BackendDuckDB
	}
	return ui
}

// finish attaches the trace log when the caller asked for debug output.
func finish(req contracts.ChatRequest, tr *trace.Collector, resp contracts.ChatResponse) contracts.ChatResponse {
	if req.UI.Debug {
		resp.Traces = tr.Entries()
	}
	return resp
}

func askSearchElsewhere() contracts.ChatResponse {
	return contracts.ChatResponse{
		Status: contracts.StatusNeedConfirmation,
		Answer: "I can't find that data in what's currently available. Do you want me to search elsewhere?",
	}
}

// Run processes one chat turn to a terminal response. It is a single
// blocking sequential flow; the only internal concurrency is the sandbox
// worker process.
func (o *Orchestrator) Run(ctx context.Context, req contracts.ChatRequest) contracts.ChatResponse {
	req.UI = normalizeUI(req.UI)
	tr := trace.New()

	role := roleFrom(req.Meta)
	selected := ""
	confirm := false
	if req.Meta != nil {
		selected = strings.TrimSpace(req.Meta.SelectedIntent)
		confirm = req.Meta.ConfirmSearchElsewhere
	}
	tr.Add("meta", map[string]any{
		"role":                     role,
		"selected_intent":          selected,
		"confirm_search_elsewhere": confirm,
	})

	if isGreeting(req.Message) {
		return finish(req, tr, contracts.ChatResponse{
			Status: contracts.StatusOK,
			Answer: "Hello. Select a role to see recommended questions, or ask a question about trends, performance, risk, or platform health.",
			Followups: []string{
				"Show revenue and net income trend over the last 12 months",
				"Show branch map: deposits and risk score",
				"Show tech reliability trend: uptime, incidents, latency",
			},
		})
	}

	// The fallback lane is entered only on explicit confirmation; the
	// available-data lane never falls through silently.
	if confirm {
		tr.Add("routing", map[string]any{"path": "fallback"})
		return o.runFallback(ctx, req, role, tr)
	}

	intentKey := o.routeIntentKey(ctx, req, role, selected, tr)

	var ans availdata.AvailableAnswer
	if intentKey != "" {
		ans = o.engine.AnswerFromIntent(intentKey)
		tr.Add("available_data.intent", map[string]any{
			"intent_key": intentKey, "ok": ans.OK, "reason": ans.Reason, "dataset": ans.Dataset,
		})
	} else {
		ans = o.engine.AnswerFromFreeQuestion(req.Message)
		tr.Add("available_data.free", map[string]any{
			"ok": ans.OK, "reason": ans.Reason, "dataset": ans.Dataset,
		})
	}
	if !ans.OK || ans.Frame == nil {
		return finish(req, tr, askSearchElsewhere())
	}

	work := ans.Frame.Copy()

	if strings.Contains(strings.ToLower(req.Message), "branch") {
		if token := extractBranchToken(req.Message); token != "" {
			filtered := work.FilterContains([]string{"branch_name", "city", "state", "region"}, token)
			tr.Add("branch_filter", map[string]any{
				"token": token, "rows_before": work.Len(), "rows_after": filtered.Len(),
			})
			if filtered.Len() == 0 {
				return finish(req, tr, contracts.ChatResponse{
					Status: contracts.StatusOK,
					Answer: fmt.Sprintf("No data available for %s branch in currently available datasets.", token),
					Followups: []string{
						"Show branch map: deposits and risk score",
						"Show branch stats for CA branch",
						"Do you want me to search elsewhere?",
					},
				})
			}
			work = filtered
		}
	}

	var forecastMetrics []string
	if availdata.IsTrendRequest(req.Message) {
		work, forecastMetrics = availdata.ForecastNextMonths(work, ans.TimeCol, ans.MetricCols, 2, o.clamp)
		if len(forecastMetrics) > 0 && work.HasColumn(availdata.ForecastFlagColumn) {
			tr.Add("forecast", map[string]any{"enabled": true, "months": 2, "metrics": forecastMetrics})
		}
	}

	frame := work.Cap(req.UI.MaxRows, req.UI.MaxCols, len(forecastMetrics) > 0)

	chart, chartDesc := o.renderViz(ctx, req, ans, frame, tr)

	keyNumbers := availdata.KeyNumbers(frame, ans.TimeCol)
	observations := availdata.Observations(frame, ans.TimeCol, ans.MetricCols)
	if len(forecastMetrics) > 0 {
		observations = append(observations, "Includes a 2-month forecast based on recent trend slope.")
	}

	var chartDescriptions []string
	if chartDesc != "" {
		chartDescriptions = append(chartDescriptions, chartDesc)
	}
	payload, _ := json.Marshal(map[string]any{
		"role":               role,
		"question":           req.Message,
		"dataset":            ans.Dataset,
		"key_numbers":        keyNumbers,
		"observations":       observations,
		"chart_descriptions": chartDescriptions,
	})

	written, err := o.tools.WriteBriefing(ctx, string(payload))
	if err != nil {
		o.log.Warn("briefing writer failed", "error", err)
	}
	markdown := strings.TrimSpace(written.Markdown)
	if markdown == "" {
		kn, _ := json.MarshalIndent(keyNumbers, "", "  ")
		markdown = fmt.Sprintf("# Briefing\n\nRole: %s\n\nQuestion: %s\n\nKey numbers: %s\n", role, req.Message, kn)
	}
	tr.Add("executive_writer", map[string]any{"followups": written.Followups})

	blockName := ans.Dataset
	if blockName == "" {
		blockName = "report"
	}
	return finish(req, tr, contracts.ChatResponse{
		Status:    contracts.StatusOK,
		Answer:    markdown,
		Followups: written.Followups,
		ReportBlocks: []contracts.ReportBlock{{
			Name:    blockName,
			Purpose: req.Message,
			Columns: frame.Columns,
			Rows:    frame.Rows,
			Chart:   chart,
		}},
	})
}

// routeIntentKey resolves the message to a registered intent key, or ""
// for the free-question path. Resolution order: caller selection, the
// branch rule, fuzzy built-in questions, then the registry-router model.
func (o *Orchestrator) routeIntentKey(ctx context.Context, req contracts.ChatRequest, role, selected string, tr *trace.Collector) string {
	if selected != "" {
		return selected
	}

	msgLower := strings.ToLower(req.Message)
	if strings.Contains(msgLower, "branch") {
		if _, ok := o.intents.Get("branch_geo_map"); ok {
			tr.Add("intent_match", map[string]any{"method": "rule_branch", "intent_key": "branch_geo_map"})
			return "branch_geo_map"
		}
	}

	bestScore, bestIntent := -1.0, ""
	for _, q := range o.builtIns {
		if s := similarity(req.Message, q.Text); s > bestScore {
			bestScore, bestIntent = s, q.Intent
		}
	}
	if bestIntent != "" && bestScore >= builtInMatchThreshold {
		tr.Add("intent_match", map[string]any{
			"method": "fuzzy_builtin", "intent_key": bestIntent, "score": bestScore,
		})
		return bestIntent
	}

	keys := o.intents.Keys()
	if len(keys) > 200 {
		keys = keys[:200]
	}
	var roleQuestions []string
	for _, q := range o.builtIns {
		for _, r := range q.Roles {
			if strings.EqualFold(r, role) {
				roleQuestions = append(roleQuestions, q.Text)
				break
			}
		}
		if len(roleQuestions) >= 50 {
			break
		}
	}

	route, err := o.tools.RouteIntent(ctx, role, req.Message, keys, roleQuestions)
	if err != nil {
		o.log.Warn("registry routing failed", "error", err)
		return ""
	}
	tr.Add("registry_router", map[string]any{
		"picked": route.IntentKey, "confidence": route.Confidence, "reason": route.Reason,
	})
	if route.IntentKey != "" {
		if _, ok := o.intents.Get(route.IntentKey); ok {
			return route.IntentKey
		}
	}
	return ""
}

// renderViz produces a chart for the capped frame. Trend requests get a
// deterministic line chart; everything else asks the model for chart
// script and runs it in the sandbox, falling back to the deterministic
// renderer on any sandbox failure.
func (o *Orchestrator) renderViz(ctx context.Context, req contracts.ChatRequest, ans availdata.AvailableAnswer, frame *availdata.Frame, tr *trace.Collector) (*contracts.Chart, string) {
	result := frameResult(frame)

	if availdata.IsTrendRequest(req.Message) && ans.TimeCol != "" && frame.HasColumn(ans.TimeCol) {
		yMetric := ""
		for _, preferred := range []string{"churn_rate", "churn_pct"} {
			if frame.HasColumn(preferred) {
				yMetric = preferred
				break
			}
		}
		if yMetric == "" {
			for _, m := range ans.MetricCols {
				if frame.HasColumn(m) && !strings.HasPrefix(m, "__") {
					yMetric = m
					break
				}
			}
		}
		if yMetric != "" {
			spec := contracts.ChartSpec{Type: "line", X: ans.TimeCol, Y: yMetric, Title: "Trend"}
			tr.Add("viz_coder", map[string]any{"viz": "skipped_for_trend", "hint": spec})
			chart := viz.RenderChart(result, spec)
			if chart != nil {
				chart.Description = "Deterministic trend chart with time on the x-axis."
				chart.AltText = fmt.Sprintf("Line chart showing %s over time.", yMetric)
				return chart, chart.Description
			}
			return nil, ""
		}
	}

	plan, err := o.tools.VizCode(ctx, req.Message, frame.Columns, frame.Rows)
	if err != nil {
		o.log.Warn("viz code generation failed", "error", err)
		return nil, ""
	}
	tr.Add("viz_coder", map[string]any{"chart_type": plan.ChartType, "title": plan.Title})
	if plan.ChartType == "none" {
		return nil, ""
	}

	var chart *contracts.Chart
	if plan.Code != "" && o.sandbox != nil {
		sr := o.sandbox.RunCode(ctx, plan.Code, frameTable(frame))
		if err := sr.Err(); err != nil {
			if errors.Is(err, contracts.ErrSandboxTimeout) {
				o.log.Warn("viz sandbox timed out", "error", err)
			} else {
				o.log.Warn("viz sandbox rejected code", "error", err)
			}
			tr.Add("viz_sandbox_error", map[string]any{"error": sr.Error, "kind": string(sr.Kind)})
		} else {
			chart = sr.Chart
		}
	}
	if chart == nil {
		chart = viz.RenderChart(result, contracts.ChartSpec{Type: plan.ChartType, Title: plan.Title})
	}
	if chart == nil {
		return nil, ""
	}
	chart.Description = plan.Description
	chart.AltText = plan.AltText
	return chart, plan.Description
}

func frameResult(f *availdata.Frame) *contracts.QueryResult {
	return &contracts.QueryResult{
		Columns:  f.Columns,
		Rows:     f.Rows,
		RowCount: f.Len(),
	}
}

func frameTable(f *availdata.Frame) sandbox.Table {
	return sandbox.Table{Columns: f.Columns, Rows: f.Rows}
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datamesa/assistant/pkg/contracts"
)

// TriageAction is the closed set of error-triage outcomes. Anything the
// model returns outside this set collapses to Stop.
type TriageAction string

const (
	TriageRetryWithPatch   TriageAction = "RETRY_WITH_PATCH"
	TriageAskClarification TriageAction = "ASK_CLARIFICATION"
	TriageStop             TriageAction = "STOP"
)

// ParseTriageAction maps model output onto the closed action set.
func ParseTriageAction(s string) TriageAction {
	switch TriageAction(strings.ToUpper(strings.TrimSpace(s))) {
	case TriageRetryWithPatch:
		return TriageRetryWithPatch
	case TriageAskClarification:
		return TriageAskClarification
	}
	return TriageStop
}

// IntentDecision is the router verdict for a message.
type IntentDecision struct {
	Intent     contracts.Intent
	Confidence float64
	Reason     string
}

// ClarityResult is the clarify-first verdict.
type ClarityResult struct {
	IsClear              bool
	Questions            []string
	AssumptionsIfProceed []string
}

// TriageDecision is the model's verdict on a failed execution.
type TriageDecision struct {
	Action              TriageAction
	PatchedSQLServer    string
	PatchedDuckDB       string
	ClarifyingQuestions []string
	UserMessage         string
}

// Interpretation is the business-friendly reading of a result preview.
type Interpretation struct {
	Answer    string
	Followups []string
}

// RegistryRoute maps a question onto a registered intent key, or "" when
// nothing fits.
type RegistryRoute struct {
	IntentKey  string
	Confidence float64
	Reason     string
}

// VizPlan is generated chart code plus its presentation metadata.
type VizPlan struct {
	ChartType   string
	Title       string
	Code        string
	Description string
	AltText     string
}

// Written is markdown produced by a writer call.
type Written struct {
	Markdown  string
	Followups []string
}

// Toolset exposes every model operation the orchestrator needs as a typed
// call. Parsing is permissive: a malformed field falls back to its
// documented default rather than failing the turn.
type Toolset struct {
	llm Completer
}

func NewToolset(c Completer) *Toolset {
	return &Toolset{llm: c}
}

func historyPrefix(history []contracts.Message, maxTurns int) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(truncateString(m.Content, 500))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// ClassifyIntent routes the message into the closed intent set. A response
// the parser cannot read defaults to data_question.
func (t *Toolset) ClassifyIntent(ctx context.Context, message string, history []contracts.Message) (IntentDecision, error) {
	user := historyPrefix(history, 6) + "User message: " + message
	response, err := t.llm.Complete(ctx, intentRouterPrompt, user)
	if err != nil {
		return IntentDecision{}, fmt.Errorf("intent classification failed: %w", err)
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}
	return IntentDecision{
		Intent:     contracts.ParseIntent(strings.ToLower(parsed.Intent)),
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}, nil
}

// CheckClarity decides whether the request is answerable as-is. An
// unreadable response defaults to clear so a flaky model never wedges the
// pipeline in clarification loops.
func (t *Toolset) CheckClarity(ctx context.Context, message, groundingText string, history []contracts.Message) (ClarityResult, error) {
	user := historyPrefix(history, 6) + "User message: " + message + "\n\nRelevant metadata:\n" + truncateString(groundingText, 6000)
	response, err := t.llm.Complete(ctx, clarityPrompt, user)
	if err != nil {
		return ClarityResult{}, fmt.Errorf("clarity check failed: %w", err)
	}

	parsed := struct {
		IsClear              *bool    `json:"is_clear"`
		Questions            []string `json:"questions"`
		AssumptionsIfProceed []string `json:"assumptions_if_proceed"`
	}{}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}

	out := ClarityResult{IsClear: true}
	if parsed.IsClear != nil {
		out.IsClear = *parsed.IsClear
	}
	out.Questions = capStrings(parsed.Questions, 5)
	out.AssumptionsIfProceed = capStrings(parsed.AssumptionsIfProceed, 10)
	return out, nil
}

// GenerateSQL produces a dual-dialect plan from the question and grounding.
func (t *Toolset) GenerateSQL(ctx context.Context, message, groundingText string, ui contracts.UISettings) (contracts.SqlPlan, error) {
	limits, _ := json.Marshal(map[string]any{
		"max_rows":         ui.MaxRows,
		"max_cols":         ui.MaxCols,
		"max_exec_seconds": ui.MaxExecSeconds,
		"backend":          ui.Backend,
	})
	user := fmt.Sprintf("User question: %s\nLimits: %s\n\nMetadata (grounding):\n%s",
		message, limits, truncateString(groundingText, 8000))

	response, err := t.llm.Complete(ctx, sqlGeneratorPrompt, user, WithCacheControl())
	if err != nil {
		return contracts.SqlPlan{}, fmt.Errorf("SQL generation failed: %w", err)
	}

	var parsed struct {
		SQLServer  string   `json:"sql_server"`
		DuckDB     string   `json:"sql_duckdb"`
		UsedTables []string `json:"used_tables"`
		Notes      string   `json:"notes"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err == nil && (parsed.SQLServer != "" || parsed.DuckDB != "") {
			return contracts.SqlPlan{
				SQLServer:  cleanSQL(parsed.SQLServer),
				DuckDB:     cleanSQL(parsed.DuckDB),
				UsedTables: parsed.UsedTables,
				Notes:      parsed.Notes,
			}, nil
		}
	}

	// Fall back to a bare SQL code block; it serves both dialects until the
	// limits policy specializes them.
	if sql := extractSQLFromCodeBlocks(response); sql != "" {
		return contracts.SqlPlan{SQLServer: sql, DuckDB: sql}, nil
	}
	if looksLikeSQL(response) {
		sql := cleanSQL(response)
		return contracts.SqlPlan{SQLServer: sql, DuckDB: sql}, nil
	}

	return contracts.SqlPlan{}, fmt.Errorf("could not extract SQL from response")
}

// TriageError asks the model what to do about a failed execution. An
// unreadable response means Stop.
func (t *Toolset) TriageError(ctx context.Context, message, sql, dbError, groundingText string) (TriageDecision, error) {
	user := fmt.Sprintf("User question: %s\n\nSQL attempted:\n%s\n\nDB error:\n%s\n\nMetadata:\n%s",
		message, sql, dbError, truncateString(groundingText, 8000))
	response, err := t.llm.Complete(ctx, errorTriagePrompt, user)
	if err != nil {
		return TriageDecision{Action: TriageStop}, fmt.Errorf("error triage failed: %w", err)
	}

	var parsed struct {
		Action              string   `json:"action"`
		PatchedSQLServer    string   `json:"patched_sql_server"`
		PatchedDuckDB       string   `json:"patched_sql_duckdb"`
		ClarifyingQuestions []string `json:"clarifying_questions"`
		UserMessage         string   `json:"user_message"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}
	return TriageDecision{
		Action:              ParseTriageAction(parsed.Action),
		PatchedSQLServer:    cleanSQL(parsed.PatchedSQLServer),
		PatchedDuckDB:       cleanSQL(parsed.PatchedDuckDB),
		ClarifyingQuestions: capStrings(parsed.ClarifyingQuestions, 5),
		UserMessage:         parsed.UserMessage,
	}, nil
}

// InterpretResult turns a bounded result preview into a business answer.
func (t *Toolset) InterpretResult(ctx context.Context, message, sql, preview string, history []contracts.Message) (Interpretation, error) {
	user := historyPrefix(history, 6) + fmt.Sprintf("User question: %s\nSQL executed:\n%s\n\nResult preview:\n%s",
		message, sql, truncateString(preview, 12000))
	response, err := t.llm.Complete(ctx, resultInterpreterPrompt, user)
	if err != nil {
		return Interpretation{}, fmt.Errorf("result interpretation failed: %w", err)
	}

	var parsed struct {
		Answer    string   `json:"answer"`
		Followups []string `json:"followups"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}
	return Interpretation{
		Answer:    strings.TrimSpace(parsed.Answer),
		Followups: capStrings(parsed.Followups, 5),
	}, nil
}

// PlanReport produces a bounded multi-query report plan. At most five
// sub-queries survive parsing regardless of what the model sends back.
func (t *Toolset) PlanReport(ctx context.Context, message, groundingText string) (contracts.ReportPlan, error) {
	user := fmt.Sprintf("User request: %s\n\nMetadata (grounding):\n%s", message, truncateString(groundingText, 8000))
	response, err := t.llm.Complete(ctx, reportPlannerPrompt, user, WithCacheControl())
	if err != nil {
		return contracts.ReportPlan{}, fmt.Errorf("report planning failed: %w", err)
	}

	var parsed struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Queries []struct {
			Name      string `json:"name"`
			Purpose   string `json:"purpose"`
			SQLServer string `json:"sql_server"`
			DuckDB    string `json:"sql_duckdb"`
			Chart     struct {
				Library string `json:"library"`
				Type    string `json:"type"`
				X       string `json:"x"`
				Y       string `json:"y"`
				Title   string `json:"title"`
			} `json:"chart"`
		} `json:"queries"`
		Followups []string `json:"followups"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}

	plan := contracts.ReportPlan{
		Title:     parsed.Title,
		Summary:   parsed.Summary,
		Followups: capStrings(parsed.Followups, 5),
	}
	if plan.Title == "" {
		plan.Title = "Analytics Report"
	}
	for _, q := range parsed.Queries {
		if len(plan.Queries) >= 5 {
			break
		}
		name := q.Name
		if name == "" {
			name = "query"
		}
		chartType := q.Chart.Type
		if chartType == "" {
			chartType = "none"
		}
		plan.Queries = append(plan.Queries, contracts.ReportQuerySpec{
			Name:      name,
			Purpose:   q.Purpose,
			SQLServer: cleanSQL(q.SQLServer),
			DuckDB:    cleanSQL(q.DuckDB),
			Chart: contracts.ReportChart{
				Library: q.Chart.Library,
				Type:    chartType,
				X:       q.Chart.X,
				Y:       q.Chart.Y,
				Title:   q.Chart.Title,
			},
		})
	}
	return plan, nil
}

// WriteReport renders the executed report blocks into markdown.
func (t *Toolset) WriteReport(ctx context.Context, message string, summaryJSON string) (Written, error) {
	user := fmt.Sprintf("User request: %s\n\nReport data:\n%s", message, truncateString(summaryJSON, 12000))
	return t.write(ctx, reportWriterPrompt, user)
}

// WriteBriefing renders the executive summary payload into markdown.
func (t *Toolset) WriteBriefing(ctx context.Context, payloadJSON string) (Written, error) {
	return t.write(ctx, executiveWriterPrompt, truncateString(payloadJSON, 12000))
}

func (t *Toolset) write(ctx context.Context, system, user string) (Written, error) {
	response, err := t.llm.Complete(ctx, system, user)
	if err != nil {
		return Written{}, fmt.Errorf("writer call failed: %w", err)
	}
	var parsed struct {
		Markdown  string   `json:"markdown"`
		Followups []string `json:"followups"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}
	return Written{
		Markdown:  parsed.Markdown,
		Followups: capStrings(parsed.Followups, 5),
	}, nil
}

// RouteIntent maps a question onto the best registered intent key. "NONE"
// and unreadable responses become the empty key.
func (t *Toolset) RouteIntent(ctx context.Context, role, question string, intentKeys []string, builtIns []string) (RegistryRoute, error) {
	payload, _ := json.Marshal(map[string]any{
		"role":               role,
		"question":           question,
		"intent_keys":        intentKeys,
		"built_in_questions": builtIns,
	})
	response, err := t.llm.Complete(ctx, registryRouterPrompt, string(payload))
	if err != nil {
		return RegistryRoute{}, fmt.Errorf("registry routing failed: %w", err)
	}

	var parsed struct {
		IntentKey  string  `json:"intent_key"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}
	key := strings.TrimSpace(parsed.IntentKey)
	if strings.EqualFold(key, "NONE") {
		key = ""
	}
	return RegistryRoute{IntentKey: key, Confidence: parsed.Confidence, Reason: parsed.Reason}, nil
}

// VizCode asks the model for restricted chart-script code over the given
// table preview. A missing or "none" chart type yields an empty plan.
func (t *Toolset) VizCode(ctx context.Context, userRequest string, columns []string, rows [][]any) (VizPlan, error) {
	if len(rows) > 50 {
		rows = rows[:50]
	}
	payload, _ := json.Marshal(map[string]any{
		"user_request": userRequest,
		"table":        map[string]any{"columns": columns, "rows": rows},
		"constraints":  "statements of the form name = expression; final chart in variable fig",
	})
	response, err := t.llm.Complete(ctx, vizCoderPrompt, string(payload))
	if err != nil {
		return VizPlan{}, fmt.Errorf("viz code generation failed: %w", err)
	}

	var parsed struct {
		ChartType   string `json:"chart_type"`
		Title       string `json:"title"`
		Code        string `json:"code"`
		Description string `json:"description"`
		AltText     string `json:"alt_text"`
	}
	if jsonStr := extractJSON(response); jsonStr != "" {
		_ = json.Unmarshal([]byte(jsonStr), &parsed)
	}
	if parsed.ChartType == "" || strings.EqualFold(parsed.ChartType, "none") {
		return VizPlan{ChartType: "none"}, nil
	}
	return VizPlan{
		ChartType:   strings.ToLower(parsed.ChartType),
		Title:       parsed.Title,
		Code:        parsed.Code,
		Description: parsed.Description,
		AltText:     parsed.AltText,
	}, nil
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		in = in[:n]
	}
	return in
}

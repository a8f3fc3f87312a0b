// Package contracts holds the shared data model passed between the
// orchestrator, its policies, and the collaborator adapters.
package contracts

import "time"

// Backend identifies the SQL dialect/engine a query targets.
type Backend string

const (
	// BackendSQLServer is the enterprise warehouse backend (TOP dialect).
	BackendSQLServer Backend = "sqlserver"
	// BackendDuckDB is the embedded analytics backend (LIMIT dialect).
	BackendDuckDB Backend = "duckdb"
)

// Intent is the closed set of question classifications.
type Intent string

const (
	IntentDataQuestion    Intent = "data_question"
	IntentAnalyticsReport Intent = "analytics_report"
	IntentGeneralQuestion Intent = "general_question"
	IntentOutOfScope      Intent = "out_of_scope"
)

// ParseIntent maps arbitrary model output onto the closed intent set,
// defaulting to data_question.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentDataQuestion, IntentAnalyticsReport, IntentGeneralQuestion, IntentOutOfScope:
		return Intent(s)
	}
	return IntentDataQuestion
}

// Status is the terminal status of a chat turn.
type Status string

const (
	StatusOK                Status = "ok"
	StatusNeedClarification Status = "need_clarification"
	StatusNeedConfirmation  Status = "need_confirmation"
	StatusBlocked           Status = "blocked"
	StatusError             Status = "error"
)

// UISettings carries the caller-configured hard caps for a turn.
// The caps are never exceeded regardless of what a collaborator returns.
type UISettings struct {
	Debug          bool    `json:"debug"`
	MaxRows        int     `json:"max_rows"`
	MaxCols        int     `json:"max_cols"`
	MaxExecSeconds int     `json:"max_exec_seconds"`
	Backend        Backend `json:"backend"`
}

// Message is a single turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// RequestMeta carries optional routing hints from the host application.
type RequestMeta struct {
	Role                   string `json:"role,omitempty"`
	SelectedIntent         string `json:"selected_intent,omitempty"`
	ConfirmSearchElsewhere bool   `json:"confirm_search_elsewhere,omitempty"`
}

// ChatRequest is one immutable chat turn from the host.
type ChatRequest struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	UI        UISettings   `json:"ui"`
	History   []Message    `json:"history"`
	Meta      *RequestMeta `json:"meta,omitempty"`
}

// Citation references a retrieved metadata document.
type Citation struct {
	Source     string `json:"source"` // "field", "table" or "relationship"
	DocID      string `json:"doc_id"`
	Snippet    string `json:"snippet"`
	SchemaName string `json:"schema_name,omitempty"`
	TableName  string `json:"table_name,omitempty"`
	ColumnName string `json:"column_name,omitempty"`
}

// GroundingPack is the retrieved metadata handed to downstream steps.
// Empty grounding is valid; generation proceeds without it.
type GroundingPack struct {
	Citations []Citation                  `json:"citations"`
	RawDocs   map[string][]map[string]any `json:"-"`
	Text      string                      `json:"text"`
}

// SqlPlan is generated SQL in both supported dialects.
type SqlPlan struct {
	SQLServer  string   `json:"sql_server"`
	DuckDB     string   `json:"sql_duckdb"`
	UsedTables []string `json:"used_tables"`
	Notes      string   `json:"notes"`
}

// ForBackend returns the dialect text for the given backend.
func (p SqlPlan) ForBackend(b Backend) string {
	if b == BackendSQLServer {
		return p.SQLServer
	}
	return p.DuckDB
}

// SafetyReport is the policy verdict for a SqlPlan. It is derived
// deterministically and must be recomputed after any SQL patch.
type SafetyReport struct {
	IsSafe        bool     `json:"is_safe"`
	SafeSQLServer string   `json:"safe_sql_server,omitempty"`
	SafeDuckDB    string   `json:"safe_sql_duckdb,omitempty"`
	Violations    []string `json:"violations,omitempty"`
	UserMessage   string   `json:"user_message,omitempty"`
}

// SafeForBackend returns the limit-enforced SQL for the given backend.
func (r SafetyReport) SafeForBackend(b Backend) string {
	if b == BackendSQLServer {
		return r.SafeSQLServer
	}
	return r.SafeDuckDB
}

// QueryResult is a bounded preview of an executed query.
// Invariant: RowCount == len(Rows) <= the configured max rows.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count_returned"`
	Truncated bool     `json:"truncated"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

// ChartSpec is a declarative chart instruction.
type ChartSpec struct {
	Library string `json:"library,omitempty"` // advisory only
	Type    string `json:"type"`              // "line", "bar", "pie", "scatter" or "none"
	X       string `json:"x,omitempty"`
	Y       string `json:"y,omitempty"`
	Color   string `json:"color,omitempty"`
	Title   string `json:"title,omitempty"`
}

// ChartSeries is one named series of a renderable chart.
type ChartSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Chart is the renderable chart object handed back to the host. The core
// never rasterizes; the host owns drawing.
type Chart struct {
	Spec        ChartSpec     `json:"spec"`
	XValues     []string      `json:"x_values"`
	Series      []ChartSeries `json:"series"`
	Description string        `json:"description,omitempty"`
	AltText     string        `json:"alt_text,omitempty"`
}

// SandboxFailureKind distinguishes sandbox failure classes. Timeouts are a
// distinct kind and never retried.
type SandboxFailureKind string

const (
	SandboxFailureNone      SandboxFailureKind = ""
	SandboxFailureViolation SandboxFailureKind = "violation"
	SandboxFailureCodeError SandboxFailureKind = "code_error"
	SandboxFailureTimeout   SandboxFailureKind = "timeout"
)

// SandboxResult is the single result of one sandbox invocation.
type SandboxResult struct {
	OK    bool               `json:"ok"`
	Error string             `json:"error,omitempty"`
	Kind  SandboxFailureKind `json:"kind,omitempty"`
	Chart *Chart             `json:"chart,omitempty"`
}

// StepTrace is one append-only trace entry for a pipeline step.
type StepTrace struct {
	Step    string         `json:"step"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// ReportChart is the chart instruction attached to a report sub-query.
type ReportChart struct {
	Library string `json:"library"`
	Type    string `json:"type"`
	X       string `json:"x,omitempty"`
	Y       string `json:"y,omitempty"`
	Title   string `json:"title,omitempty"`
}

// ReportQuerySpec is one bounded sub-query in an analytics report plan.
type ReportQuerySpec struct {
	Name      string      `json:"name"`
	Purpose   string      `json:"purpose"`
	SQLServer string      `json:"sql_server"`
	DuckDB    string      `json:"sql_duckdb"`
	Chart     ReportChart `json:"chart"`
}

// ReportPlan is a bounded multi-query report plan (at most 5 sub-queries).
type ReportPlan struct {
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	Queries   []ReportQuerySpec `json:"queries"`
	Followups []string          `json:"followups"`
}

// ReportBlock is one executed sub-query of an analytics report. A failed
// sub-query carries Error and does not halt its siblings.
type ReportBlock struct {
	Name    string   `json:"name"`
	Purpose string   `json:"purpose,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Preview string   `json:"preview,omitempty"`
	SQLUsed string   `json:"sql_used,omitempty"`
	Chart   *Chart   `json:"chart,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ChatResponse is the final structured response of one orchestrator run.
type ChatResponse struct {
	Status              Status        `json:"status"`
	Answer              string        `json:"answer"`
	Followups           []string      `json:"followups,omitempty"`
	Citations           []Citation    `json:"citations,omitempty"`
	SQLServer           string        `json:"sql_server,omitempty"`
	SQLDuckDB           string        `json:"sql_duckdb,omitempty"`
	Result              *QueryResult  `json:"result,omitempty"`
	Chart               *Chart        `json:"chart,omitempty"`
	ReportBlocks        []ReportBlock `json:"report_blocks,omitempty"`
	ClarifyingQuestions []string      `json:"clarifying_questions,omitempty"`
	Traces              []StepTrace   `json:"traces,omitempty"`
}

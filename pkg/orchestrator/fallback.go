package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/fastpath"
	"github.com/datamesa/assistant/pkg/search"
	"github.com/datamesa/assistant/pkg/trace"
)

// runFallback drives the SQL/RAG state machine to a terminal response.
func (o *Orchestrator) runFallback(ctx context.Context, req contracts.ChatRequest, role string, tr *trace.Collector) contracts.ChatResponse {
	tc := turnContext{req: req, role: role}
	st := stateIntent
	for st != stateDone {
		switch st {
		case stateIntent:
			st, tc = o.stepIntent(ctx, tc, tr)
		case stateGrounding:
			st, tc = o.stepGrounding(ctx, tc, tr)
		case stateClarity:
			st, tc = o.stepClarity(ctx, tc, tr)
		case stateDataQA:
			st, tc = o.stepPlanSQL(ctx, tc, tr)
		case stateReport:
			st, tc = o.stepReport(ctx, tc, tr)
		case stateSafety:
			st, tc = o.stepSafety(ctx, tc, tr)
		case stateExecute:
			st, tc = o.stepExecute(ctx, tc, tr)
		case stateTriage:
			st, tc = o.stepTriage(ctx, tc, tr)
		case stateInterpret:
			st, tc = o.stepInterpret(ctx, tc, tr)
		}
	}
	return finish(tc.req, tr, *tc.final)
}

func (o *Orchestrator) stepIntent(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	decision, err := o.tools.ClassifyIntent(ctx, tc.req.Message, tc.req.History)
	if err != nil {
		return tc.terminal(contracts.ChatResponse{
			Status: contracts.StatusError,
			Answer: fmt.Sprintf("I could not process the request: %v", err),
		})
	}
	tr.Add("intent_router", map[string]any{
		"intent": string(decision.Intent), "confidence": decision.Confidence, "reason": decision.Reason,
	})
	tc.intent = decision.Intent
	return stateGrounding, tc
}

// stepGrounding always proceeds: a failing searcher leaves the grounding
// pack empty, it never fails the turn.
func (o *Orchestrator) stepGrounding(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	raw := search.Results{}
	if o.searcher != nil {
		res, err := o.searcher.Search(ctx, tc.req.Message, groundingTopK)
		if err != nil {
			o.log.Warn("metadata search failed", "error", err)
			tr.Add("grounding_error", map[string]any{"error": err.Error()})
		} else {
			raw = res
		}
	}
	tc.grounding = search.BuildGroundingPack(raw)
	tr.Add("grounding", map[string]any{"citations": len(tc.grounding.Citations)})
	return stateClarity, tc
}

func (o *Orchestrator) stepClarity(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	clarity, err := o.tools.CheckClarity(ctx, tc.req.Message, tc.grounding.Text, tc.req.History)
	if err != nil {
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusError,
			Answer:    fmt.Sprintf("I could not process the request: %v", err),
			Citations: tc.grounding.Citations,
		})
	}
	tr.Add("requirement_clarity", map[string]any{
		"is_clear": clarity.IsClear, "questions": clarity.Questions,
	})
	if !clarity.IsClear {
		return tc.terminal(contracts.ChatResponse{
			Status:              contracts.StatusNeedClarification,
			Answer:              "I need a bit more detail before I can query the data.",
			Citations:           tc.grounding.Citations,
			ClarifyingQuestions: clarity.Questions,
		})
	}
	if tc.intent == contracts.IntentAnalyticsReport {
		return stateReport, tc
	}
	return stateDataQA, tc
}

// stepPlanSQL obtains the single-query plan. A matching query template
// bypasses generation entirely; a template missing a required parameter
// fails closed into clarification rather than rendering a malformed query.
func (o *Orchestrator) stepPlanSQL(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	if m := fastpath.BestMatch(tc.req.Message, o.templates, o.threshold); m != nil {
		params := fastpath.ExtractParams(tc.req.Message, m.Template)
		missing := fastpath.MissingRequired(m.Template, params)
		tr.Add("fastpath", map[string]any{
			"template": m.Template.Name, "score": m.Score, "params": params, "missing": missing,
		})
		if len(missing) > 0 {
			questions := make([]string, 0, len(missing))
			for _, p := range missing {
				questions = append(questions, fmt.Sprintf("What value should I use for %s?", p))
			}
			return tc.terminal(contracts.ChatResponse{
				Status:              contracts.StatusNeedClarification,
				Answer:              "I matched a known query but need a few details to run it.",
				Citations:           tc.grounding.Citations,
				ClarifyingQuestions: questions,
			})
		}
		tc.plan = contracts.SqlPlan{
			SQLServer: fastpath.RenderTemplate(m.Template.SQLServer, params),
			DuckDB:    fastpath.RenderTemplate(m.Template.DuckDB, params),
			Notes:     fmt.Sprintf("Template: %s", m.Template.Name),
		}
		return stateSafety, tc
	}

	plan, err := o.tools.GenerateSQL(ctx, tc.req.Message, tc.grounding.Text, tc.req.UI)
	if err != nil {
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusError,
			Answer:    fmt.Sprintf("I could not generate a query for that: %v", err),
			Citations: tc.grounding.Citations,
		})
	}
	tr.Add("sql_generator", map[string]any{"notes": plan.Notes, "used_tables": plan.UsedTables})
	tc.plan = plan
	return stateSafety, tc
}

// checkSafety runs the deterministic policy gates over a plan: the SQL
// text policy on the backend-selected dialect, the table access policy
// over the plan's tables, then row-limit injection for both dialects.
// It must be re-run after any SQL patch.
func (o *Orchestrator) checkSafety(ctx context.Context, plan contracts.SqlPlan, ui contracts.UISettings, role string) contracts.SafetyReport {
	violations := o.sqlPolicy.Validate(plan.ForBackend(ui.Backend))

	if o.tables != nil && len(plan.UsedTables) > 0 {
		decision, err := o.tables.Evaluate(ctx, plan.UsedTables, o.deniedTables, role)
		if err != nil {
			violations = append(violations, fmt.Sprintf("Table access policy error: %v", err))
		} else if decision != "allow" {
			violations = append(violations, "Table access denied by policy")
		}
	}

	if len(violations) > 0 {
		return contracts.SafetyReport{
			Violations:  violations,
			UserMessage: "The generated SQL was blocked by the safety policy. Please rephrase your question.",
		}
	}

	report := contracts.SafetyReport{IsSafe: true}
	if plan.SQLServer != "" {
		report.SafeSQLServer = o.limits.ApplyRowLimit(plan.SQLServer, contracts.BackendSQLServer, ui.MaxRows)
	}
	if plan.DuckDB != "" {
		report.SafeDuckDB = o.limits.ApplyRowLimit(plan.DuckDB, contracts.BackendDuckDB, ui.MaxRows)
	}
	return report
}

func (o *Orchestrator) stepSafety(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	tc.safety = o.checkSafety(ctx, tc.plan, tc.req.UI, tc.role)
	tr.Add("sql_safety", map[string]any{
		"is_safe": tc.safety.IsSafe, "violations": tc.safety.Violations,
	})
	if !tc.safety.IsSafe {
		answer := tc.safety.UserMessage
		if answer == "" {
			answer = "Blocked by SQL safety policy."
		}
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusBlocked,
			Answer:    answer,
			Citations: tc.grounding.Citations,
		})
	}
	return stateExecute, tc
}

func (o *Orchestrator) stepExecute(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	timeout := time.Duration(tc.req.UI.MaxExecSeconds) * time.Second
	result, err := o.executor.Execute(ctx, tc.safety.SafeForBackend(tc.req.UI.Backend), timeout)
	if err != nil {
		tc.lastErr = err
		tc.attempts++
		if tc.attempts >= o.maxRetryAttempts {
			return tc.terminal(contracts.ChatResponse{
				Status:    contracts.StatusError,
				Answer:    fmt.Sprintf("Query failed after %d attempts: %v", o.maxRetryAttempts, err),
				Citations: tc.grounding.Citations,
			})
		}
		return stateTriage, tc
	}

	cols, rows, truncated := o.limits.TruncateResult(result.Columns, result.Rows, tc.req.UI.MaxCols, tc.req.UI.MaxRows)
	result.Columns, result.Rows = cols, rows
	result.RowCount = len(rows)
	result.Truncated = result.Truncated || truncated
	tc.result = result
	tr.Add("execute", map[string]any{
		"rows": result.RowCount, "elapsed_ms": result.ElapsedMS, "truncated": result.Truncated,
	})
	return stateInterpret, tc
}

func (o *Orchestrator) stepInterpret(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	sqlUsed := tc.safety.SafeForBackend(tc.req.UI.Backend)
	preview := previewText(tc.result.Columns, tc.result.Rows, defaultMaxRows)

	interp, err := o.tools.InterpretResult(ctx, tc.req.Message, sqlUsed, preview, tc.req.History)
	if err != nil {
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusError,
			Answer:    fmt.Sprintf("The query succeeded but I could not summarize the result: %v", err),
			Citations: tc.grounding.Citations,
			SQLServer: tc.safety.SafeSQLServer,
			SQLDuckDB: tc.safety.SafeDuckDB,
			Result:    &tc.result,
		})
	}
	answer := interp.Answer
	if answer == "" {
		answer = "(no answer)"
	}
	tr.Add("interpret_result", map[string]any{"followups": interp.Followups})

	return tc.terminal(contracts.ChatResponse{
		Status:    contracts.StatusOK,
		Answer:    answer,
		Followups: interp.Followups,
		Citations: tc.grounding.Citations,
		SQLServer: tc.safety.SafeSQLServer,
		SQLDuckDB: tc.safety.SafeDuckDB,
		Result:    &tc.result,
	})
}

// previewText renders a bounded tab-separated preview for interpretation.
func previewText(columns []string, rows [][]any, maxRows int) string {
	lines := []string{strings.Join(columns, "\t")}
	for i, r := range rows {
		if i >= maxRows {
			break
		}
		cells := make([]string, len(r))
		for j, v := range r {
			if v == nil {
				cells[j] = ""
			} else {
				cells[j] = fmt.Sprintf("%v", v)
			}
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return strings.Join(lines, "\n")
}

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/llm"
	"github.com/datamesa/assistant/pkg/trace"
	"github.com/datamesa/assistant/pkg/viz"
)

const reportPreviewLimit = 8000

// stepReport runs the analytics-report branch: a bounded plan of at most
// five sub-queries, each executed independently through the same safety
// and triage gates as a single query. A failed sub-query becomes an error
// block and never halts its siblings; only an ASK_CLARIFICATION triage
// verdict ends the whole turn.
func (o *Orchestrator) stepReport(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	plan, err := o.tools.PlanReport(ctx, tc.req.Message, tc.grounding.Text)
	if err != nil {
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusError,
			Answer:    fmt.Sprintf("I could not plan that report: %v", err),
			Citations: tc.grounding.Citations,
		})
	}
	tr.Add("report_planner", map[string]any{"title": plan.Title, "queries": len(plan.Queries)})

	var blocks []contracts.ReportBlock
	for _, spec := range plan.Queries {
		block, clarify := o.runReportQuery(ctx, tc, tr, spec)
		if clarify != nil {
			return tc.terminal(*clarify)
		}
		blocks = append(blocks, block)
	}

	markdown, followups := o.writeReport(ctx, tc.req.Message, plan, blocks, tr)
	if len(followups) == 0 {
		followups = plan.Followups
	}

	return tc.terminal(contracts.ChatResponse{
		Status:       contracts.StatusOK,
		Answer:       markdown,
		Followups:    followups,
		Citations:    tc.grounding.Citations,
		ReportBlocks: blocks,
	})
}

// runReportQuery executes one sub-query with its own bounded retry loop.
// The second return value is non-nil only for an ASK_CLARIFICATION triage
// verdict, which is terminal for the turn.
func (o *Orchestrator) runReportQuery(ctx context.Context, tc turnContext, tr *trace.Collector, spec contracts.ReportQuerySpec) (contracts.ReportBlock, *contracts.ChatResponse) {
	plan := contracts.SqlPlan{
		SQLServer: spec.SQLServer,
		DuckDB:    spec.DuckDB,
		Notes:     fmt.Sprintf("Report query: %s - %s", spec.Name, spec.Purpose),
	}

	safety := o.checkSafety(ctx, plan, tc.req.UI, tc.role)
	tr.Add("report_query_safety", map[string]any{
		"name": spec.Name, "is_safe": safety.IsSafe, "violations": safety.Violations,
	})
	if !safety.IsSafe {
		return contracts.ReportBlock{Name: spec.Name, Error: "Blocked by SQL policy"}, nil
	}

	timeout := time.Duration(tc.req.UI.MaxExecSeconds) * time.Second
	attempts := 0
	for {
		result, err := o.executor.Execute(ctx, safety.SafeForBackend(tc.req.UI.Backend), timeout)
		if err == nil {
			cols, rows, truncated := o.limits.TruncateResult(result.Columns, result.Rows, tc.req.UI.MaxCols, tc.req.UI.MaxRows)
			result.Columns, result.Rows = cols, rows
			result.RowCount = len(rows)
			result.Truncated = result.Truncated || truncated

			return contracts.ReportBlock{
				Name:    spec.Name,
				Purpose: spec.Purpose,
				Columns: result.Columns,
				Rows:    result.Rows,
				Preview: previewText(result.Columns, result.Rows, defaultMaxRows),
				SQLUsed: safety.SafeForBackend(tc.req.UI.Backend),
				Chart: viz.RenderChart(&result, contracts.ChartSpec{
					Type:  spec.Chart.Type,
					X:     spec.Chart.X,
					Y:     spec.Chart.Y,
					Title: spec.Chart.Title,
				}),
			}, nil
		}

		attempts++
		if attempts >= o.maxRetryAttempts {
			return contracts.ReportBlock{Name: spec.Name, Error: err.Error()}, nil
		}

		triage, terr := o.tools.TriageError(ctx, tc.req.Message, safety.SafeForBackend(tc.req.UI.Backend), err.Error(), tc.grounding.Text)
		if terr != nil {
			return contracts.ReportBlock{Name: spec.Name, Error: err.Error()}, nil
		}
		tr.Add("error_triage", map[string]any{
			"name": spec.Name, "action": string(triage.Action), "user_message": triage.UserMessage,
		})

		switch triage.Action {
		case llm.TriageRetryWithPatch:
			plan = applyPatch(plan, triage)
			safety = o.checkSafety(ctx, plan, tc.req.UI, tc.role)
			if !safety.IsSafe {
				return contracts.ReportBlock{Name: spec.Name, Error: "Patched SQL blocked by policy"}, nil
			}

		case llm.TriageAskClarification:
			answer := triage.UserMessage
			if answer == "" {
				answer = "I need more detail."
			}
			return contracts.ReportBlock{}, &contracts.ChatResponse{
				Status:              contracts.StatusNeedClarification,
				Answer:              answer,
				Citations:           tc.grounding.Citations,
				ClarifyingQuestions: triage.ClarifyingQuestions,
			}

		default:
			return contracts.ReportBlock{Name: spec.Name, Error: err.Error()}, nil
		}
	}
}

// writeReport renders the executed blocks into markdown, with a plain
// fallback when the writer call fails or returns nothing.
func (o *Orchestrator) writeReport(ctx context.Context, message string, plan contracts.ReportPlan, blocks []contracts.ReportBlock, tr *trace.Collector) (string, []string) {
	type executedSummary struct {
		Name    string               `json:"name"`
		Purpose string               `json:"purpose"`
		Preview string               `json:"preview"`
		Chart   contracts.ReportChart `json:"chart,omitempty"`
		Error   string               `json:"error,omitempty"`
	}
	executed := make([]executedSummary, 0, len(blocks))
	for i, b := range blocks {
		preview := b.Preview
		if len(preview) > reportPreviewLimit {
			preview = preview[:reportPreviewLimit]
		}
		e := executedSummary{Name: b.Name, Purpose: b.Purpose, Preview: preview, Error: b.Error}
		if i < len(plan.Queries) {
			e.Chart = plan.Queries[i].Chart
		}
		executed = append(executed, e)
	}
	payload, _ := json.Marshal(map[string]any{
		"title":    plan.Title,
		"summary":  plan.Summary,
		"executed": executed,
	})

	written, err := o.tools.WriteReport(ctx, message, string(payload))
	if err != nil {
		o.log.Warn("report writer failed", "error", err)
	}
	tr.Add("report_writer", map[string]any{"followups": written.Followups})

	markdown := strings.TrimSpace(written.Markdown)
	if markdown == "" {
		markdown = fmt.Sprintf("# %s\n\n%s", plan.Title, plan.Summary)
	}
	return markdown, written.Followups
}

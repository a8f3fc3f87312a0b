package orchestrator

import (
	"context"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/llm"
	"github.com/datamesa/assistant/pkg/trace"
)

// stepTriage consults the triage decision after a failed execution. The
// attempt counter was already incremented by the execute step; triage
// only decides what happens next. A patched plan is always re-validated
// before it runs again.
func (o *Orchestrator) stepTriage(ctx context.Context, tc turnContext, tr *trace.Collector) (state, turnContext) {
	sqlUsed := tc.safety.SafeForBackend(tc.req.UI.Backend)

	triage, err := o.tools.TriageError(ctx, tc.req.Message, sqlUsed, tc.lastErr.Error(), tc.grounding.Text)
	if err != nil {
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusError,
			Answer:    fmt.Sprintf("Query failed: %v", tc.lastErr),
			Citations: tc.grounding.Citations,
		})
	}
	tr.Add("error_triage", map[string]any{
		"action": string(triage.Action), "user_message": triage.UserMessage,
	})

	switch triage.Action {
	case llm.TriageRetryWithPatch:
		patched := applyPatch(tc.plan, triage)
		if tc.req.UI.Debug {
			tr.Add("sql_patch_diff", map[string]any{
				"diff": sqlDiff(tc.plan.ForBackend(tc.req.UI.Backend), patched.ForBackend(tc.req.UI.Backend)),
			})
		}
		tc.plan = patched
		tc.safety = o.checkSafety(ctx, tc.plan, tc.req.UI, tc.role)
		if !tc.safety.IsSafe {
			return tc.terminal(contracts.ChatResponse{
				Status:    contracts.StatusBlocked,
				Answer:    "Patched SQL blocked by policy.",
				Citations: tc.grounding.Citations,
			})
		}
		return stateExecute, tc

	case llm.TriageAskClarification:
		answer := triage.UserMessage
		if answer == "" {
			answer = "I need more detail."
		}
		return tc.terminal(contracts.ChatResponse{
			Status:              contracts.StatusNeedClarification,
			Answer:              answer,
			Citations:           tc.grounding.Citations,
			ClarifyingQuestions: triage.ClarifyingQuestions,
		})

	default:
		answer := triage.UserMessage
		if answer == "" {
			answer = fmt.Sprintf("Query failed: %v", tc.lastErr)
		}
		return tc.terminal(contracts.ChatResponse{
			Status:    contracts.StatusError,
			Answer:    answer,
			Citations: tc.grounding.Citations,
		})
	}
}

// applyPatch replaces only the dialects the triage decision patched.
func applyPatch(plan contracts.SqlPlan, triage llm.TriageDecision) contracts.SqlPlan {
	if triage.PatchedSQLServer != "" {
		plan.SQLServer = triage.PatchedSQLServer
	}
	if triage.PatchedDuckDB != "" {
		plan.DuckDB = triage.PatchedDuckDB
	}
	return plan
}

func sqlDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.DiffPrettyText(diffs)
}

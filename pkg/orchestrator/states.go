package orchestrator

import "github.com/datamesa/assistant/pkg/contracts"

// state names one position in the fallback pipeline. Transitions are
// driven by step functions that take the current turn context by value
// and return the next state with an updated copy; no step mutates
// anything outside its own return value.
type state string

const (
	stateIntent    state = "INTENT"
	stateGrounding state = "GROUNDING"
	stateClarity   state = "CLARITY_CHECK"
	stateDataQA    state = "DATA_QA"
	stateReport    state = "ANALYTICS_REPORT"
	stateSafety    state = "SAFETY_CHECK"
	stateExecute   state = "EXECUTE"
	stateTriage    state = "ERROR_TRIAGE"
	stateInterpret state = "INTERPRET"
	stateDone      state = "DONE"
)

// turnContext accumulates the pipeline values for a single chat turn. It
// is owned exclusively by one orchestrator run and passed by value
// between steps, so concurrent turns never share request-scoped state.
type turnContext struct {
	req       contracts.ChatRequest
	role      string
	intent    contracts.Intent
	grounding contracts.GroundingPack
	plan      contracts.SqlPlan
	safety    contracts.SafetyReport
	result    contracts.QueryResult
	attempts  int
	lastErr   error

	// final is set by whichever step reaches a terminal outcome; the
	// driver loop stops on stateDone and returns it.
	final *contracts.ChatResponse
}

func (tc turnContext) terminal(resp contracts.ChatResponse) (state, turnContext) {
	tc.final = &resp
	return stateDone, tc
}

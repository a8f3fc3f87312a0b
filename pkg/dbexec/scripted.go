package dbexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datamesa/assistant/pkg/contracts"
)

// step is one scripted outcome: either a result or an error.
type step struct {
	result contracts.QueryResult
	err    error
}

// ScriptedExecutor replays queued results and errors in order and records
// every SQL statement it was asked to run. Used by orchestrator tests.
type ScriptedExecutor struct {
	mu    sync.Mutex
	steps []step
	SQL   []string
}

func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{}
}

// QueueResult appends a successful outcome.
func (s *ScriptedExecutor) QueueResult(r contracts.QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{result: r})
}

// QueueError appends a failing outcome.
func (s *ScriptedExecutor) QueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{err: err})
}

func (s *ScriptedExecutor) Execute(_ context.Context, sqlText string, _ time.Duration) (contracts.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SQL = append(s.SQL, sqlText)
	if len(s.steps) == 0 {
		return contracts.QueryResult{}, fmt.Errorf("%w: scripted executor exhausted", contracts.ErrExecution)
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.result, next.err
}

func (s *ScriptedExecutor) Close() error { return nil }

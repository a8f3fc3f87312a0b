package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/datamesa/assistant/pkg/contracts"
)

// RecordedCall is one Complete invocation seen by a ScriptedCompleter.
type RecordedCall struct {
	System string
	User   string
	Cached bool
}

// ScriptedCompleter returns canned responses in order. Used by tests to
// drive the pipeline without a model.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	Calls     []RecordedCall
}

// NewScriptedCompleter queues the given responses.
func NewScriptedCompleter(responses ...string) *ScriptedCompleter {
	return &ScriptedCompleter{responses: responses}
}

// QueueError makes the next call fail with err.
func (s *ScriptedCompleter) QueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Queue appends more responses.
func (s *ScriptedCompleter) Queue(responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

func (s *ScriptedCompleter) Complete(_ context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var options CompleteOptions
	for _, opt := range opts {
		opt(&options)
	}
	s.Calls = append(s.Calls, RecordedCall{System: systemPrompt, User: userPrompt, Cached: options.CacheSystemPrompt})

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("%w: scripted completer exhausted after %d calls", contracts.ErrTool, len(s.Calls))
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out, nil
}

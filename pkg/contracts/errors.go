package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy. Failures wrap one of these sentinels so callers can
// classify with errors.Is without string matching.
var (
	// ErrConfig means required settings are absent or invalid. Fatal,
	// surfaced before any turn starts.
	ErrConfig = errors.New("configuration error")

	// ErrUnsafeSQL means the SQL policy rejected a plan. Recoverable with a
	// user-facing rephrase message; never retried automatically.
	ErrUnsafeSQL = errors.New("unsafe SQL")

	// ErrExecution means the database collaborator failed, including
	// timeouts. Recoverable through the bounded triage loop.
	ErrExecution = errors.New("execution failure")

	// ErrTool means a search or LLM collaborator failed.
	ErrTool = errors.New("tool failure")

	// ErrSandboxViolation means a static sandbox rule rejected generated
	// code, or the code failed at runtime. Resolved by falling back to a
	// deterministic chart; never retried.
	ErrSandboxViolation = errors.New("sandbox violation")

	// ErrSandboxTimeout means isolated execution exceeded its time budget.
	ErrSandboxTimeout = errors.New("sandbox timeout")
)

// Err folds a failed sandbox result into the error taxonomy so callers can
// classify with errors.Is. Returns nil for successful runs.
func (r SandboxResult) Err() error {
	if r.OK {
		return nil
	}
	if r.Kind == SandboxFailureTimeout {
		return fmt.Errorf("%w: %s", ErrSandboxTimeout, r.Error)
	}
	return fmt.Errorf("%w: %s", ErrSandboxViolation, r.Error)
}

// Package sandbox executes model-generated chart scripts in an isolated
// worker subprocess: static validation first, then a hard-killed run with
// a strict deadline. A timeout is its own failure kind and is never
// retried.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/datamesa/assistant/pkg/contracts"
)

// WorkerArg is the argv[1] that switches the main binary into worker mode.
const WorkerArg = "viz-worker"

// Runner executes scripts in a subprocess.
type Runner struct {
	// Command yields the worker argv. Overridable for tests; the default
	// re-executes the current binary in worker mode.
	Command func() (string, []string, error)

	Timeout time.Duration
	log     *slog.Logger
}

// NewRunner builds a runner with the given per-run deadline.
func NewRunner(timeout time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		Command: selfCommand,
		Timeout: timeout,
		log:     log,
	}
}

func selfCommand() (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("cannot locate worker binary: %w", err)
	}
	return exe, []string{WorkerArg}, nil
}

// RunCode validates and executes the script against the table. The result
// is always well-formed; failures are classified, never panics.
func (r *Runner) RunCode(ctx context.Context, code string, table Table) contracts.SandboxResult {
	// Validate before spawning anything. Violations are terminal.
	if err := Validate(code); err != nil {
		return contracts.SandboxResult{
			OK:    false,
			Error: err.Error(),
			Kind:  contracts.SandboxFailureViolation,
		}
	}

	input, err := json.Marshal(workerInput{Code: code, Table: table})
	if err != nil {
		return contracts.SandboxResult{
			OK:    false,
			Error: fmt.Sprintf("failed to encode worker input: %v", err),
			Kind:  contracts.SandboxFailureCodeError,
		}
	}

	name, args, err := r.Command()
	if err != nil {
		return contracts.SandboxResult{
			OK:    false,
			Error: err.Error(),
			Kind:  contracts.SandboxFailureCodeError,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		r.log.Warn("sandbox worker killed on deadline", "timeout", r.Timeout)
		return contracts.SandboxResult{
			OK:    false,
			Error: fmt.Sprintf("visualization code timed out after %s", r.Timeout),
			Kind:  contracts.SandboxFailureTimeout,
		}
	}
	if runErr != nil {
		return contracts.SandboxResult{
			OK:    false,
			Error: fmt.Sprintf("sandbox worker failed: %v: %s", runErr, stderr.String()),
			Kind:  contracts.SandboxFailureCodeError,
		}
	}

	var result contracts.SandboxResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return contracts.SandboxResult{
			OK:    false,
			Error: fmt.Sprintf("unreadable worker output: %v", err),
			Kind:  contracts.SandboxFailureCodeError,
		}
	}
	r.log.Debug("sandbox run finished", "ok", result.OK, "kind", result.Kind, "elapsed", elapsed)
	return result
}

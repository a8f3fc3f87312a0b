package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/logger"
)

// TestMain doubles as the worker entrypoint: when the test binary is
// re-executed with the worker argument it behaves exactly like the
// production binary's worker mode.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == WorkerArg {
		if err := WorkerMain(os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestWorkerMain(t *testing.T) {
	t.Parallel()

	t.Run("valid_code_returns_chart", func(t *testing.T) {
		t.Parallel()
		in, err := json.Marshal(workerInput{
			Code:  `fig = chart.line(data["month"], data["deposits"])`,
			Table: tableFixture(),
		})
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, WorkerMain(bytes.NewReader(in), &out))

		var result contracts.SandboxResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.True(t, result.OK)
		require.NotNil(t, result.Chart)
		require.Equal(t, "line", result.Chart.Spec.Type)
	})

	t.Run("script_error_is_code_error", func(t *testing.T) {
		t.Parallel()
		in, _ := json.Marshal(workerInput{Code: `fig = chart.line(data["nope"], data["deposits"])`, Table: tableFixture()})
		var out bytes.Buffer
		require.NoError(t, WorkerMain(bytes.NewReader(in), &out))

		var result contracts.SandboxResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.False(t, result.OK)
		require.Equal(t, contracts.SandboxFailureCodeError, result.Kind)
	})

	t.Run("blocked_name_is_violation", func(t *testing.T) {
		t.Parallel()
		in, _ := json.Marshal(workerInput{Code: `fig = os.system`, Table: tableFixture()})
		var out bytes.Buffer
		require.NoError(t, WorkerMain(bytes.NewReader(in), &out))

		var result contracts.SandboxResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.False(t, result.OK)
		require.Equal(t, contracts.SandboxFailureViolation, result.Kind)
	})

	t.Run("garbage_input", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		require.NoError(t, WorkerMain(strings.NewReader("not json"), &out))

		var result contracts.SandboxResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.False(t, result.OK)
		require.Equal(t, contracts.SandboxFailureCodeError, result.Kind)
	})
}

func TestRunner(t *testing.T) {
	t.Parallel()

	t.Run("runs_code_in_subprocess", func(t *testing.T) {
		t.Parallel()
		r := NewRunner(10*time.Second, logger.Nop())
		result := r.RunCode(context.Background(), `fig = chart.bar(data["month"], data["deposits"], title="T")`, tableFixture())
		require.True(t, result.OK, "error: %s", result.Error)
		require.NoError(t, result.Err())
		require.NotNil(t, result.Chart)
		require.Equal(t, "bar", result.Chart.Spec.Type)
		require.Equal(t, "T", result.Chart.Spec.Title)
	})

	t.Run("violation_blocks_before_spawning", func(t *testing.T) {
		t.Parallel()
		r := NewRunner(10*time.Second, logger.Nop())
		r.Command = func() (string, []string, error) {
			t.Fatal("worker must not be spawned for invalid code")
			return "", nil, nil
		}
		result := r.RunCode(context.Background(), `fig = exec("anything")`, tableFixture())
		require.False(t, result.OK)
		require.Equal(t, contracts.SandboxFailureViolation, result.Kind)
		require.ErrorIs(t, result.Err(), contracts.ErrSandboxViolation)
	})

	t.Run("hung_worker_is_killed_and_reported_as_timeout", func(t *testing.T) {
		t.Parallel()
		r := NewRunner(200*time.Millisecond, logger.Nop())
		r.Command = func() (string, []string, error) {
			return "sleep", []string{"60"}, nil
		}
		start := time.Now()
		result := r.RunCode(context.Background(), `fig = chart.line(data["month"], data["deposits"])`, tableFixture())
		require.Less(t, time.Since(start), 5*time.Second, "worker was not killed promptly")
		require.False(t, result.OK)
		require.Equal(t, contracts.SandboxFailureTimeout, result.Kind)
		require.ErrorIs(t, result.Err(), contracts.ErrSandboxTimeout)
	})

	t.Run("crashing_worker_is_code_error", func(t *testing.T) {
		t.Parallel()
		r := NewRunner(5*time.Second, logger.Nop())
		r.Command = func() (string, []string, error) {
			return "false", nil, nil
		}
		result := r.RunCode(context.Background(), `fig = chart.line(data["month"], data["deposits"])`, tableFixture())
		require.False(t, result.OK)
		require.Equal(t, contracts.SandboxFailureCodeError, result.Kind)
	})
}

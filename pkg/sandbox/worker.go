package sandbox

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/datamesa/assistant/pkg/contracts"
)

// workerInput is the JSON payload the parent writes to the worker's stdin.
type workerInput struct {
	Code  string `json:"code"`
	Table Table  `json:"table"`
}

// WorkerMain is the entrypoint of the sandbox worker subprocess. It reads
// one workerInput from in, interprets the script, and writes one
// SandboxResult to out. It never returns a non-zero status for script
// failures; those travel in the result so the parent can classify them.
func WorkerMain(in io.Reader, out io.Writer) error {
	var input workerInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return writeResult(out, contracts.SandboxResult{
			OK:    false,
			Error: fmt.Sprintf("invalid worker input: %v", err),
			Kind:  contracts.SandboxFailureCodeError,
		})
	}

	// Re-validate inside the worker; the parent's check is not trusted
	// across the process boundary.
	if err := Validate(input.Code); err != nil {
		return writeResult(out, contracts.SandboxResult{
			OK:    false,
			Error: err.Error(),
			Kind:  contracts.SandboxFailureViolation,
		})
	}

	chart, err := Run(input.Code, input.Table)
	if err != nil {
		return writeResult(out, contracts.SandboxResult{
			OK:    false,
			Error: err.Error(),
			Kind:  contracts.SandboxFailureCodeError,
		})
	}

	return writeResult(out, contracts.SandboxResult{OK: true, Chart: chart})
}

func writeResult(out io.Writer, r contracts.SandboxResult) error {
	return json.NewEncoder(out).Encode(r)
}

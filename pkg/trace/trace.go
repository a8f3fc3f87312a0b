// Package trace collects per-step traces for a single chat turn.
//
// The collector is owned by one orchestrator run and is never shared across
// concurrent turns. Entries are append-only and exposed to the caller only
// when debug mode is requested.
package trace

import (
	"github.com/jonboulle/clockwork"

	"github.com/datamesa/assistant/pkg/contracts"
)

// Collector accumulates ordered step traces.
type Collector struct {
	clock   clockwork.Clock
	entries []contracts.StepTrace
}

// New returns a collector stamping entries with the real clock.
func New() *Collector {
	return NewWithClock(clockwork.NewRealClock())
}

// NewWithClock returns a collector using the given clock. Tests pass a
// clockwork fake clock for deterministic timestamps.
func NewWithClock(clock clockwork.Clock) *Collector {
	return &Collector{clock: clock}
}

// Add appends one trace entry.
func (c *Collector) Add(step string, payload map[string]any) {
	c.entries = append(c.entries, contracts.StepTrace{
		Step:    step,
		Payload: payload,
		At:      c.clock.Now().UTC(),
	})
}

// Entries returns the ordered trace log.
func (c *Collector) Entries() []contracts.StepTrace {
	return c.entries
}

// Count returns the number of entries recorded for the given step name.
func (c *Collector) Count(step string) int {
	n := 0
	for _, e := range c.entries {
		if e.Step == step {
			n++
		}
	}
	return n
}

// Package cleanup provides a generic teardown ledger: named undo actions
// registered in the order their matching setup step ran, unwound in reverse
// on RunAll, with every step logged regardless of whether earlier steps
// failed. Modeled on the teacher's cleanup.Coordinator audit-log style,
// generalized from "sidecars to destroy" to any named closure.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhkim/fragscapy-go/pkg/telemetry"
)

// Action is one registered teardown step.
type Action struct {
	Name string
	Undo func(ctx context.Context) error
}

// Entry is one completed (or attempted) teardown step, kept for the audit log.
type Entry struct {
	Timestamp time.Time
	Name      string
	Success   bool
	Err       error
}

// Coordinator accumulates Actions and unwinds them in reverse registration
// order, the same "last set up, first torn down" discipline as
// nfrule.Installer's in-call rollback, but scoped to a whole driver run.
type Coordinator struct {
	log     *telemetry.Logger
	actions []Action
	entries []Entry
}

// New constructs an empty Coordinator.
func New(log *telemetry.Logger) *Coordinator {
	return &Coordinator{log: log}
}

// Register adds an undo action. Actions run in reverse registration order.
func (c *Coordinator) Register(name string, undo func(ctx context.Context) error) {
	c.actions = append(c.actions, Action{Name: name, Undo: undo})
}

// RunAll unwinds every registered action in reverse order. It does not stop
// at the first failure: every action gets a chance to run, and all errors
// are joined into the returned error.
func (c *Coordinator) RunAll(ctx context.Context) error {
	var errs []error
	for i := len(c.actions) - 1; i >= 0; i-- {
		a := c.actions[i]
		err := a.Undo(ctx)
		c.entries = append(c.entries, Entry{Timestamp: time.Now(), Name: a.Name, Success: err == nil, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
			if c.log != nil {
				c.log.Error("cleanup step failed", "action", a.Name, "error", err)
			}
			continue
		}
		if c.log != nil {
			c.log.Debug("cleanup step ok", "action", a.Name)
		}
	}
	c.actions = nil
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("cleanup: %d of %d step(s) failed: %w", len(errs), len(c.entries), errors.Join(errs...))
}

// Entries returns the completed teardown audit log.
func (c *Coordinator) Entries() []Entry { return c.entries }

// Summary tallies Entries.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize computes a Summary over the recorded Entries.
func (c *Coordinator) Summarize() Summary {
	s := Summary{Total: len(c.entries)}
	for _, e := range c.entries {
		if e.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("cleanup: %d total, %d succeeded, %d failed", s.Total, s.Succeeded, s.Failed)
}

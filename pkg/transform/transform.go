// Package transform defines the base contract every recipe operator
// implements, and the ordered Recipe of operators the engine applies to a
// packet list.
package transform

import (
	"fmt"

	"github.com/jhkim/fragscapy-go/pkg/packet"
)

// Field is one (option-name, rendered-value) pair in an operator's
// description, used for the modification log and for usage/debug output.
type Field struct {
	Name  string
	Value string
}

// Transformation is a stateless function object over packet lists: parse
// args at construction, declare determinism, apply to a PacketList.
//
// Apply must be total on any List; it must not outlive its Recipe; it must
// not block on I/O other than the print/echo/summary side effects it
// declares.
type Transformation interface {
	// Name is the operator's registry name (e.g. "drop-one").
	Name() string
	// Usage renders a two-line printed form: name, then formatted doc.
	Usage() string
	// IsDeterministic reports whether two applications to equal inputs
	// with equal RNG state produce equal results.
	IsDeterministic() bool
	// Apply transforms pl, returning the same instance or a new one;
	// callers must re-bind to the returned value.
	Apply(pl *packet.List) (*packet.List, error)
	// Describe returns the operator's parsed options in declaration order.
	Describe() []Field
}

// OperatorError reports a failure of an operator, either at construction
// (bad arguments) or inside Apply, naming the operator and the offending
// argument when known. A failure inside Apply is recoverable per-packet,
// never propagated past the packet that triggered it.
type OperatorError struct {
	Operator string
	ArgIndex int // -1 when not argument-specific
	Err      error
}

func (e *OperatorError) Error() string {
	if e.ArgIndex >= 0 {
		return fmt.Sprintf("operator %s: arg %d: %v", e.Operator, e.ArgIndex, e.Err)
	}
	return fmt.Sprintf("operator %s: %v", e.Operator, e.Err)
}

func (e *OperatorError) Unwrap() error { return e.Err }

// Recipe is an ordered sequence of Transformation instances, applied
// left-to-right: recipe(pl) = tn(...(t1(pl))). A Recipe is immutable once
// constructed; the engine replaces the whole reference to update it live.
type Recipe struct {
	name  string
	steps []Transformation
}

// NewRecipe builds an immutable recipe from steps, in application order.
func NewRecipe(name string, steps ...Transformation) *Recipe {
	cp := make([]Transformation, len(steps))
	copy(cp, steps)
	return &Recipe{name: name, steps: cp}
}

// Name returns the recipe's configured name (typically the source file
// or direction it was built for).
func (r *Recipe) Name() string { return r.name }

// Steps returns the recipe's operators in application order.
func (r *Recipe) Steps() []Transformation { return r.steps }

// IsDeterministic reports whether every step is deterministic.
func (r *Recipe) IsDeterministic() bool {
	for _, s := range r.steps {
		if !s.IsDeterministic() {
			return false
		}
	}
	return true
}

// Apply runs every step in order, re-binding pl to each step's result.
// An OperatorError from one step is returned to the caller; per the error
// taxonomy, the engine treats it as recoverable and accepts the packet
// unchanged rather than aborting the worker.
func (r *Recipe) Apply(pl *packet.List) (*packet.List, error) {
	cur := pl
	for i, step := range r.steps {
		next, err := step.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: step %d (%s): %w", r.name, i, step.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Describe renders one line per step: the operator name followed by its
// Describe() fields, matching the modification-log record format.
func (r *Recipe) Describe() []string {
	lines := make([]string, 0, len(r.steps))
	for _, s := range r.steps {
		line := s.Name()
		for _, f := range s.Describe() {
			line += fmt.Sprintf(" %s=%s", f.Name, f.Value)
		}
		lines = append(lines, line)
	}
	return lines
}

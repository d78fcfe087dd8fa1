package catalog

import (
	"fmt"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("reorder",
		"reorder <reverse|random>\n  Produce a new list with elements reversed or uniformly shuffled.",
		newReorder)
}

type reorder struct {
	method string
}

func newReorder(args []string) (transform.Transformation, error) {
	if err := requireArgs("reorder", args, 1); err != nil {
		return nil, &transform.OperatorError{Operator: "reorder", Err: err}
	}
	switch args[0] {
	case "reverse", "random":
		return &reorder{method: args[0]}, nil
	default:
		return nil, &transform.OperatorError{Operator: "reorder", ArgIndex: 0, Err: fmt.Errorf("method must be reverse or random, got %q", args[0])}
	}
}

func (r *reorder) Name() string          { return "reorder" }
func (r *reorder) Usage() string         { return "reorder <reverse|random>" }
func (r *reorder) IsDeterministic() bool { return r.method == "reverse" }

func (r *reorder) Apply(pl *packet.List) (*packet.List, error) {
	items := pl.Clone().Items()
	switch r.method {
	case "reverse":
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	case "random":
		for i := len(items) - 1; i > 0; i-- {
			j := randIntn(i + 1)
			items[i], items[j] = items[j], items[i]
		}
	}
	return packet.NewList(items...), nil
}

func (r *reorder) Describe() []transform.Field {
	return []transform.Field{{Name: "method", Value: r.method}}
}

package catalog

import (
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("duplicate",
		"duplicate <first|last|random|N>\n  Insert a deep copy of the selected packet immediately after it.",
		newDuplicate)
}

type duplicate struct {
	t target
}

func newDuplicate(args []string) (transform.Transformation, error) {
	if err := requireArgs("duplicate", args, 1); err != nil {
		return nil, &transform.OperatorError{Operator: "duplicate", ArgIndex: 0, Err: err}
	}
	t, err := parseTarget(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "duplicate", ArgIndex: 0, Err: err}
	}
	return &duplicate{t: t}, nil
}

func (d *duplicate) Name() string          { return "duplicate" }
func (d *duplicate) Usage() string         { return "duplicate <first|last|random|N>" }
func (d *duplicate) IsDeterministic() bool { return d.t.kind != "random" }

func (d *duplicate) Apply(pl *packet.List) (*packet.List, error) {
	idx, ok := d.t.resolve(pl.Len())
	if !ok {
		return pl, nil
	}
	out := pl.Clone()
	src, err := out.At(idx)
	if err != nil {
		return nil, &transform.OperatorError{Operator: "duplicate", Err: err}
	}
	clone := src.Clone()
	if err := out.Insert(idx+1, clone, src.Delay()); err != nil {
		return nil, &transform.OperatorError{Operator: "duplicate", Err: err}
	}
	return out, nil
}

func (d *duplicate) Describe() []transform.Field {
	return []transform.Field{{Name: "target", Value: d.t.kind}}
}

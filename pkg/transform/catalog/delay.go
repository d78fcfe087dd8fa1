package catalog

import (
	"strconv"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("delay",
		"delay <first|last|random|N|all> <seconds>\n  Set (not accumulate) the selected packet(s)' pre-send delay.",
		newDelay)
}

type delay struct {
	t       target
	seconds float64
}

func newDelay(args []string) (transform.Transformation, error) {
	if err := requireArgs("delay", args, 2); err != nil {
		return nil, &transform.OperatorError{Operator: "delay", Err: err}
	}
	t, err := parseTarget(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "delay", ArgIndex: 0, Err: err}
	}
	seconds, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, &transform.OperatorError{Operator: "delay", ArgIndex: 1, Err: err}
	}
	if seconds < 0 {
		return nil, &transform.OperatorError{Operator: "delay", ArgIndex: 1, Err: errRange("seconds", "[0,+inf)")}
	}
	return &delay{t: t, seconds: seconds}, nil
}

func (d *delay) Name() string          { return "delay" }
func (d *delay) Usage() string         { return "delay <first|last|random|N|all> <seconds>" }
func (d *delay) IsDeterministic() bool { return d.t.kind != "random" }

func (d *delay) Apply(pl *packet.List) (*packet.List, error) {
	out := pl.Clone()
	if d.t.kind == "all" {
		for i := 0; i < out.Len(); i++ {
			if err := out.SetDelay(i, d.seconds); err != nil {
				return nil, &transform.OperatorError{Operator: "delay", Err: err}
			}
		}
		return out, nil
	}
	idx, ok := d.t.resolve(out.Len())
	if !ok {
		return pl, nil
	}
	if err := out.SetDelay(idx, d.seconds); err != nil {
		return nil, &transform.OperatorError{Operator: "delay", Err: err}
	}
	return out, nil
}

func (d *delay) Describe() []transform.Field {
	return []transform.Field{
		{Name: "target", Value: d.t.kind},
		{Name: "seconds", Value: strconv.FormatFloat(d.seconds, 'g', -1, 64)},
	}
}

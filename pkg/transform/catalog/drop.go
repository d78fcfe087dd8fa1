package catalog

import (
	"strconv"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("drop-one",
		"drop-one <first|last|random|N>\n  Remove one packet at the selected index; out of range is a no-op.",
		newDropOne)
	transform.Global().Register("drop-prob",
		"drop-prob <p>\n  Independently drop each packet with probability p in [0,1].",
		newDropProb)
}

type dropOne struct {
	t target
}

func newDropOne(args []string) (transform.Transformation, error) {
	if err := requireArgs("drop-one", args, 1); err != nil {
		return nil, &transform.OperatorError{Operator: "drop-one", ArgIndex: 0, Err: err}
	}
	t, err := parseTarget(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "drop-one", ArgIndex: 0, Err: err}
	}
	return &dropOne{t: t}, nil
}

func (d *dropOne) Name() string  { return "drop-one" }
func (d *dropOne) Usage() string { return "drop-one <first|last|random|N>" }
func (d *dropOne) IsDeterministic() bool { return d.t.kind != "random" }

func (d *dropOne) Apply(pl *packet.List) (*packet.List, error) {
	idx, ok := d.t.resolve(pl.Len())
	if !ok {
		return pl, nil
	}
	out := pl.Clone()
	if err := out.Remove(idx); err != nil {
		return nil, &transform.OperatorError{Operator: "drop-one", ArgIndex: -1, Err: err}
	}
	return out, nil
}

func (d *dropOne) Describe() []transform.Field {
	return []transform.Field{{Name: "target", Value: d.t.kind}}
}

type dropProb struct {
	p float64
}

func newDropProb(args []string) (transform.Transformation, error) {
	if err := requireArgs("drop-prob", args, 1); err != nil {
		return nil, &transform.OperatorError{Operator: "drop-prob", ArgIndex: 0, Err: err}
	}
	p, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, &transform.OperatorError{Operator: "drop-prob", ArgIndex: 0, Err: err}
	}
	if p < 0 || p > 1 {
		return nil, &transform.OperatorError{Operator: "drop-prob", ArgIndex: 0, Err: errRange("p", "[0,1]")}
	}
	return &dropProb{p: p}, nil
}

func (d *dropProb) Name() string          { return "drop-prob" }
func (d *dropProb) Usage() string         { return "drop-prob <p>" }
func (d *dropProb) IsDeterministic() bool { return d.p == 0 || d.p == 1 }

func (d *dropProb) Apply(pl *packet.List) (*packet.List, error) {
	if d.p == 0 {
		return pl, nil
	}
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		if d.p == 1 || randFloat64() < d.p {
			continue
		}
		if err := out.Add(pkt, pkt.Delay()); err != nil {
			return nil, &transform.OperatorError{Operator: "drop-prob", ArgIndex: -1, Err: err}
		}
	}
	return out, nil
}

func (d *dropProb) Describe() []transform.Field {
	return []transform.Field{{Name: "p", Value: strconv.FormatFloat(d.p, 'g', -1, 64)}}
}

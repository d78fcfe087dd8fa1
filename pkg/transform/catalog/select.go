package catalog

import (
	"strconv"
	"strings"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("select",
		"select <i0> [i1 ...]\n  Keep only the listed indices, in listed order; duplicates allowed.",
		newSelect)
}

type selectOp struct {
	indices []int
	raw     string
}

func newSelect(args []string) (transform.Transformation, error) {
	if len(args) == 0 {
		return nil, &transform.OperatorError{Operator: "select", Err: errRange("indices", "at least one")}
	}
	indices := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "select", ArgIndex: i, Err: err}
		}
		indices[i] = n
	}
	return &selectOp{indices: indices, raw: strings.Join(args, ",")}, nil
}

func (s *selectOp) Name() string          { return "select" }
func (s *selectOp) Usage() string         { return "select <i0> [i1 ...]" }
func (s *selectOp) IsDeterministic() bool { return true }

func (s *selectOp) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for argi, idx := range s.indices {
		pkt, err := pl.At(idx)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "select", ArgIndex: argi, Err: err}
		}
		if err := out.Add(pkt.Clone(), pkt.Delay()); err != nil {
			return nil, &transform.OperatorError{Operator: "select", ArgIndex: argi, Err: err}
		}
	}
	return out, nil
}

func (s *selectOp) Describe() []transform.Field {
	return []transform.Field{{Name: "indices", Value: s.raw}}
}

package catalog

import (
	"fmt"
	"strconv"

	"github.com/google/gopacket/layers"
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("ipv4-overlap",
		"ipv4-overlap <fragsize> <overlap>\n  Fragment like ipv4-fragment, then append <overlap> random bytes to each fragment's payload.",
		newIPv4Overlap)
	transform.Global().Register("tcp-overlap",
		"tcp-overlap <segsize> <overlap> <before|after>\n  Segment like tcp-segment, then append/prepend <overlap> random bytes to each segment's payload.",
		newTCPOverlap)
}

type ipv4Overlap struct {
	fragsize, overlap int
}

func newIPv4Overlap(args []string) (transform.Transformation, error) {
	if err := requireArgs("ipv4-overlap", args, 2); err != nil {
		return nil, &transform.OperatorError{Operator: "ipv4-overlap", Err: err}
	}
	fragsize, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "ipv4-overlap", ArgIndex: 0, Err: err}
	}
	if fragsize < 28 {
		return nil, &transform.OperatorError{Operator: "ipv4-overlap", ArgIndex: 0, Err: errRange("fragsize", "[28,+inf)")}
	}
	overlap, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "ipv4-overlap", ArgIndex: 1, Err: err}
	}
	if overlap < 0 {
		return nil, &transform.OperatorError{Operator: "ipv4-overlap", ArgIndex: 1, Err: errRange("overlap", "[0,+inf)")}
	}
	return &ipv4Overlap{fragsize: fragsize, overlap: overlap}, nil
}

func (o *ipv4Overlap) Name() string          { return "ipv4-overlap" }
func (o *ipv4Overlap) Usage() string         { return "ipv4-overlap <fragsize> <overlap>" }
func (o *ipv4Overlap) IsDeterministic() bool { return true }
func (o *ipv4Overlap) Describe() []transform.Field {
	return []transform.Field{
		{Name: "fragsize", Value: strconv.Itoa(o.fragsize)},
		{Name: "overlap", Value: strconv.Itoa(o.overlap)},
	}
}

func (o *ipv4Overlap) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: "ipv4-overlap", Err: err}
			}
			continue
		}
		frags, err := fragmentIPv4(ip, o.fragsize, o.overlap)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "ipv4-overlap", Err: err}
		}
		for i, fp := range frags {
			d := 0.0
			if i == 0 {
				d = pkt.Delay()
			}
			if err := out.Add(fp, d); err != nil {
				return nil, &transform.OperatorError{Operator: "ipv4-overlap", Err: err}
			}
		}
	}
	return out, nil
}

type tcpOverlap struct {
	segsize, overlap int
	position         string
}

func newTCPOverlap(args []string) (transform.Transformation, error) {
	if err := requireArgs("tcp-overlap", args, 3); err != nil {
		return nil, &transform.OperatorError{Operator: "tcp-overlap", Err: err}
	}
	segsize, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "tcp-overlap", ArgIndex: 0, Err: err}
	}
	if segsize < 1 {
		return nil, &transform.OperatorError{Operator: "tcp-overlap", ArgIndex: 0, Err: errRange("segsize", "[1,+inf)")}
	}
	overlap, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "tcp-overlap", ArgIndex: 1, Err: err}
	}
	if overlap < 0 {
		return nil, &transform.OperatorError{Operator: "tcp-overlap", ArgIndex: 1, Err: errRange("overlap", "[0,+inf)")}
	}
	if args[2] != "before" && args[2] != "after" {
		return nil, &transform.OperatorError{Operator: "tcp-overlap", ArgIndex: 2, Err: fmt.Errorf("position must be before or after, got %q", args[2])}
	}
	return &tcpOverlap{segsize: segsize, overlap: overlap, position: args[2]}, nil
}

func (o *tcpOverlap) Name() string          { return "tcp-overlap" }
func (o *tcpOverlap) Usage() string         { return "tcp-overlap <segsize> <overlap> <before|after>" }
func (o *tcpOverlap) IsDeterministic() bool { return true }
func (o *tcpOverlap) Describe() []transform.Field {
	return []transform.Field{
		{Name: "segsize", Value: strconv.Itoa(o.segsize)},
		{Name: "overlap", Value: strconv.Itoa(o.overlap)},
		{Name: "position", Value: o.position},
	}
}

func (o *tcpOverlap) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		overlapFn := func() []byte { return randBytes(o.overlap) }
		if o.overlap == 0 {
			overlapFn = func() []byte { return nil }
		}
		segs, handled, err := splitTCP(pkt, o.segsize, overlapFn, o.position)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "tcp-overlap", Err: err}
		}
		if !handled {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: "tcp-overlap", Err: err}
			}
			continue
		}
		for i, sp := range segs {
			d := 0.0
			if i == 0 {
				d = pkt.Delay()
			}
			if err := out.Add(sp, d); err != nil {
				return nil, &transform.OperatorError{Operator: "tcp-overlap", Err: err}
			}
		}
	}
	return out, nil
}

package catalog

import (
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("ipv6-exthdr-shuffle",
		"ipv6-exthdr-shuffle\n  Uniformly permute the IPv6 extension header chain of each packet.",
		newIPv6ExtHdrShuffle)
}

type ipv6ExtHdrShuffle struct{}

func newIPv6ExtHdrShuffle(args []string) (transform.Transformation, error) {
	if err := requireArgs("ipv6-exthdr-shuffle", args, 0); err != nil {
		return nil, &transform.OperatorError{Operator: "ipv6-exthdr-shuffle", Err: err}
	}
	return &ipv6ExtHdrShuffle{}, nil
}

func (o *ipv6ExtHdrShuffle) Name() string              { return "ipv6-exthdr-shuffle" }
func (o *ipv6ExtHdrShuffle) Usage() string             { return "ipv6-exthdr-shuffle" }
func (o *ipv6ExtHdrShuffle) IsDeterministic() bool     { return false }
func (o *ipv6ExtHdrShuffle) Describe() []transform.Field { return nil }

func (o *ipv6ExtHdrShuffle) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		prefix, base, rest, ok := ipv6Parts(pkt)
		if !ok {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: "ipv6-exthdr-shuffle", Err: err}
			}
			continue
		}
		firstNH := base[6]
		nodes, tailNH, tail, err := walkIPv6Chain(firstNH, rest)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "ipv6-exthdr-shuffle", Err: err}
		}
		if len(nodes) <= 1 {
			// Zero or one extension header: shuffling is the identity,
			// per the idempotence invariant.
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: "ipv6-exthdr-shuffle", Err: err}
			}
			continue
		}
		shuffled := append([]ipv6Node(nil), nodes...)
		for i := len(shuffled) - 1; i > 0; i-- {
			j := randIntn(i + 1)
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}
		firstOut, chainBytes := buildIPv6Chain(shuffled, tailNH)

		hdr := append([]byte(nil), base...)
		hdr[6] = firstOut
		restOut := append(append([]byte(nil), chainBytes...), tail...)

		np, err := rebuildIPv6(prefix, hdr, restOut, linkTypeOf(pkt))
		if err != nil {
			return nil, &transform.OperatorError{Operator: "ipv6-exthdr-shuffle", Err: err}
		}
		if err := out.Add(np, pkt.Delay()); err != nil {
			return nil, &transform.OperatorError{Operator: "ipv6-exthdr-shuffle", Err: err}
		}
	}
	return out, nil
}

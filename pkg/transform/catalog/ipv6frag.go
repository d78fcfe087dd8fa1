package catalog

import (
	"strconv"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("ipv6-fragment",
		"ipv6-fragment <size>\n  Fragment each IPv6 packet, inserting a Fragment header after the Per-Fragment Headers.",
		newIPv6Fragment(false))
	transform.Global().Register("ipv6-atomic-fragment",
		"ipv6-atomic-fragment <size>\n  Like ipv6-fragment, but always emits a Fragment header even for a single-fragment result.",
		newIPv6Fragment(true))
}

type ipv6Fragment struct {
	size   int
	atomic bool
}

func newIPv6Fragment(atomic bool) transform.Constructor {
	name := "ipv6-fragment"
	if atomic {
		name = "ipv6-atomic-fragment"
	}
	return func(args []string) (transform.Transformation, error) {
		if err := requireArgs(name, args, 1); err != nil {
			return nil, &transform.OperatorError{Operator: name, Err: err}
		}
		size, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, &transform.OperatorError{Operator: name, ArgIndex: 0, Err: err}
		}
		if size < ipv6BaseLen+8+8 {
			return nil, &transform.OperatorError{Operator: name, ArgIndex: 0, Err: errRange("size", "large enough for base+fragment headers")}
		}
		return &ipv6Fragment{size: size, atomic: atomic}, nil
	}
}

func (o *ipv6Fragment) Name() string {
	if o.atomic {
		return "ipv6-atomic-fragment"
	}
	return "ipv6-fragment"
}
func (o *ipv6Fragment) Usage() string         { return o.Name() + " <size>" }
func (o *ipv6Fragment) IsDeterministic() bool { return true }
func (o *ipv6Fragment) Describe() []transform.Field {
	return []transform.Field{{Name: "size", Value: strconv.Itoa(o.size)}}
}

func (o *ipv6Fragment) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		prefix, base, rest, ok := ipv6Parts(pkt)
		if !ok {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: o.Name(), Err: err}
			}
			continue
		}
		firstNH := base[6]
		nodes, tailNH, tail, err := walkIPv6Chain(firstNH, rest)
		if err != nil {
			return nil, &transform.OperatorError{Operator: o.Name(), Err: err}
		}

		perFragEnd := 0
		for perFragEnd < len(nodes) && (nodes[perFragEnd].headerType == nhHopByHop || nodes[perFragEnd].headerType == nhRouting) {
			perFragEnd++
		}
		perFragNodes := nodes[:perFragEnd]
		trailingNodes := nodes[perFragEnd:]

		// What the Fragment header's own Next-Header must point to: the
		// first trailing extension header if any survived the
		// Per-Fragment prefix, else the upper-layer protocol.
		fragmentableNH := tailNH
		if len(trailingNodes) > 0 {
			fragmentableNH = trailingNodes[0].headerType
		}

		_, perFragBytes := buildIPv6Chain(perFragNodes, nhFragment)
		perFragLen := len(perFragBytes)

		// Everything after the Per-Fragment Headers (remaining ext
		// headers plus upper-layer payload) is what gets split.
		_, trailingBytes := buildIPv6Chain(trailingNodes, tailNH)
		splitPayload := append(append([]byte(nil), trailingBytes...), tail...)

		maxChunk := o.size - ipv6BaseLen - perFragLen - 8 // 8 = fragment header
		if maxChunk <= 0 {
			return nil, &transform.OperatorError{Operator: o.Name(), Err: errRange("size", "too small for per-fragment header length")}
		}
		chunkSize := maxChunk &^ 7

		ident := randUint32()
		var chunks [][]byte
		if len(splitPayload) == 0 {
			chunks = [][]byte{{}}
		} else {
			for off := 0; off < len(splitPayload); off += chunkSize {
				end := off + chunkSize
				if end > len(splitPayload) {
					end = len(splitPayload)
				}
				chunks = append(chunks, splitPayload[off:end])
			}
		}
		if !o.atomic && len(chunks) == 1 {
			// No fragmentation needed: pass through unchanged.
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: o.Name(), Err: err}
			}
			continue
		}

		offset := 0
		for i, chunk := range chunks {
			more := i < len(chunks)-1
			fragHdr := make([]byte, 8)
			fragHdr[0] = tailNH // overwritten by buildIPv6Chain's link to fragment predecessor
			fragHdr[1] = 0
			fragOffset := uint16(offset/8) << 3
			if more {
				fragOffset |= 1
			}
			fragHdr[2] = byte(fragOffset >> 8)
			fragHdr[3] = byte(fragOffset)
			fragHdr[4] = byte(ident >> 24)
			fragHdr[5] = byte(ident >> 16)
			fragHdr[6] = byte(ident >> 8)
			fragHdr[7] = byte(ident)

			fragNode := ipv6Node{headerType: nhFragment, raw: fragHdr}
			allNodes := append(append([]ipv6Node(nil), perFragNodes...), fragNode)
			firstOut, chainBytes := buildIPv6Chain(allNodes, fragmentableNH)

			hdr := append([]byte(nil), base...)
			hdr[6] = firstOut
			restOut := append(append([]byte(nil), chainBytes...), chunk...)

			delay := 0.0
			if i == 0 {
				delay = pkt.Delay()
			}
			np, err := rebuildIPv6(prefix, hdr, restOut, linkTypeOf(pkt))
			if err != nil {
				return nil, &transform.OperatorError{Operator: o.Name(), Err: err}
			}
			if err := out.Add(np, delay); err != nil {
				return nil, &transform.OperatorError{Operator: o.Name(), Err: err}
			}
			offset += len(chunk)
		}
	}
	return out, nil
}

package catalog

import "fmt"

// IPv6 next-header values for the extension headers the catalog
// understands. ESP (50) is deliberately absent from the TLV walk below: it
// has no Next Header field of its own (it lives in the encrypted trailer),
// so it cannot be generically chain-walked the way the others can. When
// ESP is encountered the walker stops and treats it, and everything after
// it, as one opaque trailing block that operators leave in place.
const (
	nhHopByHop  = 0
	nhRouting   = 43
	nhFragment  = 44
	nhESP       = 50
	nhAH        = 51
	nhMobility  = 135
	nhDestOpts  = 60
)

// ipv6Node is one extension header in a packet's chain, still holding its
// own on-wire NextHeader byte (rewritten during chain reassembly).
type ipv6Node struct {
	headerType uint8
	raw        []byte // full header bytes, NextHeader at raw[0]
}

func isExtHeaderType(nh uint8) bool {
	switch nh {
	case nhHopByHop, nhRouting, nhFragment, nhAH, nhMobility, nhDestOpts:
		return true
	default:
		return false
	}
}

// walkIPv6Chain parses data (the bytes immediately following the 40-byte
// IPv6 base header) into a sequence of extension-header nodes, stopping at
// the first header type the TLV walker does not recognize (including ESP,
// or the upper-layer protocol) and returning its type plus the remaining
// bytes as the opaque tail.
func walkIPv6Chain(firstNH uint8, data []byte) (nodes []ipv6Node, tailNH uint8, tail []byte, err error) {
	nh := firstNH
	rest := data
	for isExtHeaderType(nh) {
		if len(rest) < 2 {
			return nil, 0, nil, fmt.Errorf("ipv6: truncated extension header")
		}
		var hdrLen int
		switch nh {
		case nhFragment:
			hdrLen = 8
		case nhAH:
			hdrLen = (int(rest[1]) + 2) * 4
		default: // HBH, Routing, DestOpts, Mobility: 8-octet units
			hdrLen = (int(rest[1]) + 1) * 8
		}
		if hdrLen > len(rest) {
			return nil, 0, nil, fmt.Errorf("ipv6: extension header length %d exceeds remaining %d bytes", hdrLen, len(rest))
		}
		node := ipv6Node{headerType: nh, raw: append([]byte(nil), rest[:hdrLen]...)}
		nodes = append(nodes, node)
		nh = rest[0]
		rest = rest[hdrLen:]
	}
	return nodes, nh, rest, nil
}

// buildIPv6Chain re-links nodes in order, overwriting each node's
// NextHeader byte to point at the following node (or finalNH for the
// last), and returns the concatenated bytes plus the first node's header
// type (or finalNH if nodes is empty, meaning the base header's own
// NextHeader should be set to finalNH).
func buildIPv6Chain(nodes []ipv6Node, finalNH uint8) (firstNH uint8, data []byte) {
	if len(nodes) == 0 {
		return finalNH, nil
	}
	out := make([]byte, 0, len(nodes)*8)
	for i, n := range nodes {
		next := finalNH
		if i+1 < len(nodes) {
			next = nodes[i+1].headerType
		}
		hdr := append([]byte(nil), n.raw...)
		hdr[0] = next
		out = append(out, hdr...)
	}
	return nodes[0].headerType, out
}

package catalog

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/jhkim/fragscapy-go/pkg/packet"
)

// ipv6BaseLen is the fixed IPv6 base header length in bytes.
const ipv6BaseLen = 40

// ipv6Parts splits pkt's wire bytes into whatever precedes the IPv6 base
// header (a link layer, or nothing), the 40-byte base header itself, and
// everything after it (extension headers plus upper-layer payload). The
// header-aware approach operates directly on these bytes rather than
// through gopacket's (write-side limited) IPv6 extension-header support,
// per the resolved Open Question favoring a header-aware implementation.
func ipv6Parts(pkt *packet.Packet) (prefix, base, rest []byte, ok bool) {
	l := pkt.Layer(layers.LayerTypeIPv6)
	if l == nil {
		return nil, nil, nil, false
	}
	base = append([]byte(nil), l.LayerContents()...)
	rest = append([]byte(nil), l.LayerPayload()...)
	raw := pkt.Bytes()
	prefixLen := len(raw) - len(base) - len(rest)
	if prefixLen < 0 {
		prefixLen = 0
	}
	prefix = append([]byte(nil), raw[:prefixLen]...)
	return prefix, base, rest, true
}

// rebuildIPv6 reassembles prefix + base + rest into a fresh Packet,
// updating the base header's Payload Length field (bytes 4-5) to len(rest)
// first.
func rebuildIPv6(prefix, base, rest []byte, link packet.LinkType) (*packet.Packet, error) {
	if len(base) != ipv6BaseLen {
		return nil, fmt.Errorf("ipv6: base header must be %d bytes, got %d", ipv6BaseLen, len(base))
	}
	hdr := append([]byte(nil), base...)
	plen := len(rest)
	hdr[4] = byte(plen >> 8)
	hdr[5] = byte(plen)

	raw := make([]byte, 0, len(prefix)+len(hdr)+len(rest))
	raw = append(raw, prefix...)
	raw = append(raw, hdr...)
	raw = append(raw, rest...)
	return packet.New(raw, link)
}

// assembleIPv6 reassembles prefix + base + rest verbatim, without patching
// the Payload Length field. Used by operators that deliberately overwrite
// a base-header field (including Payload Length itself) and must not have
// that overwrite silently corrected.
func assembleIPv6(prefix, base, rest []byte, link packet.LinkType) (*packet.Packet, error) {
	raw := make([]byte, 0, len(prefix)+len(base)+len(rest))
	raw = append(raw, prefix...)
	raw = append(raw, base...)
	raw = append(raw, rest...)
	return packet.New(raw, link)
}

func linkTypeOf(pkt *packet.Packet) packet.LinkType {
	if pkt.Layer(layers.LayerTypeEthernet) != nil {
		return packet.LinkEthernet
	}
	return packet.LinkNone
}

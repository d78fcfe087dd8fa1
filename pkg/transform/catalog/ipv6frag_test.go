package catalog

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// buildIPv6UDPPacket serializes a minimal IPv6/UDP packet with payloadLen
// bytes of payload, via gopacket, and decodes it back into a *packet.Packet.
func buildIPv6UDPPacket(t *testing.T, payloadLen int) *packet.Packet {
	t.Helper()
	ip6 := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      []byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		DstIP:      []byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 1234, DstPort: 5678}
	udp.SetNetworkLayerForChecksum(ip6)
	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip6, udp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}

	p, err := packet.New(buf.Bytes(), packet.LinkNone)
	if err != nil {
		t.Fatalf("packet.New: %v", err)
	}
	return p
}

func TestIPv6FragmentSplitsOversizedPacket(t *testing.T) {
	op := newOp(t, "ipv6-fragment", "56") // 40 base + 8 frag header + 8 bytes of payload per chunk
	pkt := buildIPv6UDPPacket(t, 40)       // 8-byte UDP header + 40-byte payload

	in := packet.NewList(pkt)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() < 2 {
		t.Fatalf("Len() = %d, want at least 2 fragments for an oversized packet", out.Len())
	}

	for i := 0; i < out.Len(); i++ {
		f, _ := out.At(i)
		if !f.IsIPv6() {
			t.Fatalf("fragment %d: not decoded as IPv6", i)
		}
		raw := f.Bytes()
		if len(raw) > 56 {
			t.Errorf("fragment %d: length %d exceeds requested size 56", i, len(raw))
		}
	}
}

func TestIPv6FragmentSmallPacketPassesThrough(t *testing.T) {
	op := newOp(t, "ipv6-fragment", "1500")
	pkt := buildIPv6UDPPacket(t, 16)

	in := packet.NewList(pkt)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (packet fits within size, no fragmentation needed)", out.Len())
	}
}

func TestIPv6AtomicFragmentAlwaysEmitsFragmentHeader(t *testing.T) {
	op := newOp(t, "ipv6-atomic-fragment", "1500")
	pkt := buildIPv6UDPPacket(t, 16)

	in := packet.NewList(pkt)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (atomic fragment is still one packet)", out.Len())
	}
	f, _ := out.At(0)
	raw := f.Bytes()
	const nextHeaderOffset = 6
	const nextHeaderFragment = 44 // IANA protocol number for the IPv6 Fragment header
	if raw[nextHeaderOffset] != nextHeaderFragment {
		t.Fatalf("NextHeader = %d, want %d (Fragment) even for a single-fragment result", raw[nextHeaderOffset], nextHeaderFragment)
	}
}

func TestIPv6FragmentNonIPv6PacketPassesThrough(t *testing.T) {
	op := newOp(t, "ipv6-fragment", "56")
	pkt := opaquePacket(t, 0x01)
	in := packet.NewList(pkt)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (non-IPv6 packet untouched)", out.Len())
	}
}

func TestIPv6FragmentRejectsTooSmallSize(t *testing.T) {
	if _, err := transform.Global().New("ipv6-fragment", []string{"10"}); err == nil {
		t.Fatal("expected error for size too small to hold base+fragment headers")
	}
}

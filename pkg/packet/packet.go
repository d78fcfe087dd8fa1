// Package packet wraps a single wire packet in a typed, re-serializable
// layer graph plus the scheduling metadata the engine needs before sending
// it back out.
package packet

import (
	"fmt"
	"math"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Packet is an owned, mutable view of one L3 frame: a decoded layer graph
// plus a non-negative delay applied before send.
type Packet struct {
	raw    []byte
	parsed gopacket.Packet
	delay  float64
}

// LinkType selects how raw bytes are decoded: with or without an Ethernet
// header. Queues that hand back bare L3 bytes (the common NFQUEUE case) use
// LinkNone; link-layer captures use LinkEthernet.
type LinkType int

const (
	LinkNone LinkType = iota
	LinkEthernet
)

// New decodes raw into a Packet. IPv4 and IPv6 are detected from the first
// nibble when link is LinkNone; other L3 protocols decode as
// gopacket.LayerTypePayload and pass through the catalog untouched.
func New(raw []byte, link LinkType) (*Packet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("packet: empty payload")
	}

	var first gopacket.LayerType
	switch link {
	case LinkEthernet:
		first = layers.LayerTypeEthernet
	default:
		first = firstLayerFor(raw)
	}

	p := gopacket.NewPacket(raw, first, gopacket.DecodeOptions{
		Lazy:         false,
		NoCopy:       false,
		SkipDecodeRecovery: true,
	})
	if err := p.ErrorLayer(); err != nil {
		return nil, fmt.Errorf("packet: decode: %w", err.Error())
	}

	return &Packet{raw: append([]byte(nil), raw...), parsed: p}, nil
}

func firstLayerFor(raw []byte) gopacket.LayerType {
	version := raw[0] >> 4
	switch version {
	case 4:
		return layers.LayerTypeIPv4
	case 6:
		return layers.LayerTypeIPv6
	default:
		return gopacket.LayerTypePayload
	}
}

// Clone deep-copies the packet, including its delay.
func (p *Packet) Clone() *Packet {
	raw := append([]byte(nil), p.raw...)
	np, err := New(raw, linkOf(p))
	if err != nil {
		// raw was already validated once; this can only fail if the
		// original decode was itself malformed, which New already
		// rejected. Fall back to a raw-only packet rather than panic.
		np = &Packet{raw: raw}
	}
	np.delay = p.delay
	return np
}

func linkOf(p *Packet) LinkType {
	if p.parsed != nil && p.parsed.LinkLayer() != nil {
		return LinkEthernet
	}
	return LinkNone
}

// Layer returns the decoded layer of lt, or nil if absent.
func (p *Packet) Layer(lt gopacket.LayerType) gopacket.Layer {
	if p.parsed == nil {
		return nil
	}
	return p.parsed.Layer(lt)
}

// IsIPv4 reports whether the outermost L3 layer is IPv4.
func (p *Packet) IsIPv4() bool { return p.Layer(layers.LayerTypeIPv4) != nil }

// IsIPv6 reports whether the outermost L3 layer is IPv6.
func (p *Packet) IsIPv6() bool { return p.Layer(layers.LayerTypeIPv6) != nil }

// IsTCP reports whether the packet carries a TCP segment.
func (p *Packet) IsTCP() bool { return p.Layer(layers.LayerTypeTCP) != nil }

// Bytes returns a copy of the packet's current wire bytes. Changes made to
// decoded layers show up here only after Rebuild or SerializeLayers.
func (p *Packet) Bytes() []byte {
	return append([]byte(nil), p.raw...)
}

// SetBytes replaces the wire representation wholesale and re-decodes it,
// used by operators that build a new frame from scratch (fragmentation,
// segmentation).
func (p *Packet) SetBytes(raw []byte) error {
	np, err := New(raw, linkOf(p))
	if err != nil {
		return err
	}
	*p = *np
	return nil
}

// Delay returns the packet's pre-send delay in seconds.
func (p *Packet) Delay() float64 { return p.delay }

// SetDelay sets the pre-send delay. Negative or non-finite values are
// rejected per the Packet invariant.
func (p *Packet) SetDelay(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return fmt.Errorf("packet: invalid delay %v: must be non-negative and finite", seconds)
	}
	p.delay = seconds
	return nil
}

// SerializeLayers rebuilds p.raw from a fresh set of layers, recomputing
// checksums and lengths, preserving the delay.
func (p *Packet) SerializeLayers(base ...gopacket.SerializableLayer) error {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, base...); err != nil {
		return fmt.Errorf("packet: serialize: %w", err)
	}
	return p.SetBytes(buf.Bytes())
}

// LayerStack returns the packet's decoded layers in wire order as
// SerializableLayer, suitable for mutate-then-Rebuild round trips. Layers
// that do not implement SerializableLayer (rare; opaque trailers) are
// wrapped as an opaque Payload so the byte range is preserved verbatim.
func (p *Packet) LayerStack() ([]gopacket.SerializableLayer, error) {
	if p.parsed == nil {
		return nil, fmt.Errorf("packet: no decoded layers available")
	}
	stack := make([]gopacket.SerializableLayer, 0, len(p.parsed.Layers()))
	for _, l := range p.parsed.Layers() {
		if sl, ok := l.(gopacket.SerializableLayer); ok {
			stack = append(stack, sl)
			continue
		}
		stack = append(stack, gopacket.Payload(l.LayerContents()))
	}
	return stack, nil
}

// Rebuild re-serializes the packet from its current (possibly just
// mutated) decoded layer stack, recomputing checksums and lengths. TCP and
// UDP checksums are computed against whichever IPv4/IPv6 network layer
// precedes them, mirroring gopacket's pseudo-header checksum contract.
func (p *Packet) Rebuild() error {
	stack, err := p.LayerStack()
	if err != nil {
		return err
	}
	var network gopacket.NetworkLayer
	for _, l := range stack {
		switch v := l.(type) {
		case *layers.IPv4:
			network = v
		case *layers.IPv6:
			network = v
		case *layers.TCP:
			if network != nil {
				v.SetNetworkLayerForChecksum(network)
			}
		case *layers.UDP:
			if network != nil {
				v.SetNetworkLayerForChecksum(network)
			}
		}
	}
	return p.SerializeLayers(stack...)
}

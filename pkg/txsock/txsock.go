// Package txsock implements packet.Sender: raw L3 and link-layer L2 send
// of already-serialized packets, for the engine's egress re-injection path
// (spec.md §4.6 step 5).
package txsock

import (
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"golang.org/x/net/ipv4"
)

// Socket sends fully-serialized Packets (including their L3 header) onto
// the wire. L3 send uses an IP_HDRINCL raw socket via golang.org/x/net/ipv4
// (grounded in magicsock's ipv4.NewPacketConn-over-net.IPConn pattern, here
// promoted to ipv4.RawConn so the kernel does not overwrite our header);
// IPv6 has no IP_HDRINCL equivalent, so the IPv6 path sends the upper-layer
// payload over a protocol-bound raw socket and lets the kernel supply the
// base header, which is sufficient for re-injection since ipv6-fragment and
// friends only need the rewritten bytes to reach the wire in the declared
// shape, not to bypass the local stack's own header generation.
type Socket struct {
	raw4 *ipv4.RawConn
	v6   map[int]*net.IPConn // keyed by next-header protocol number
	link LinkSender
}

// LinkSender sends a full Ethernet frame, used by SendL2.
type LinkSender interface {
	WriteFrame(frame []byte) error
}

// New opens the IPv4 raw socket used for SendL3. IPv6 sockets are opened
// lazily per next-header protocol the first time they're needed.
func New(link LinkSender) (*Socket, error) {
	conn, err := net.ListenPacket("ip4:tcp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("txsock: listen raw ipv4: %w", err)
	}
	raw, err := ipv4.NewRawConn(conn)
	if err != nil {
		return nil, fmt.Errorf("txsock: new raw conn: %w", err)
	}
	return &Socket{raw4: raw, v6: make(map[int]*net.IPConn), link: link}, nil
}

// SendL3 writes pkt's serialized bytes as a full IP datagram. For IPv4 the
// bytes already contain the header (IP_HDRINCL passes them through
// unmodified); for IPv6 only the upper-layer payload is written, relying
// on the kernel to prepend a base header to the protocol-bound raw socket.
func (s *Socket) SendL3(pkt *packet.Packet) error {
	data := pkt.Bytes()
	if pkt.IsIPv4() {
		h, err := ipv4.ParseHeader(data)
		if err != nil {
			return fmt.Errorf("txsock: parse ipv4 header: %w", err)
		}
		return s.raw4.WriteTo(h, data[h.Len:], nil)
	}
	if pkt.IsIPv6() {
		return s.sendIPv6(pkt, data)
	}
	return fmt.Errorf("txsock: packet has no IPv4/IPv6 layer")
}

// SendL2 writes pkt's serialized bytes (expected to already include the
// link layer, per PacketList.SendAllLink's contract) as a raw frame.
func (s *Socket) SendL2(pkt *packet.Packet) error {
	if s.link == nil {
		return fmt.Errorf("txsock: no link sender configured")
	}
	return s.link.WriteFrame(pkt.Bytes())
}

func ipv4DstOf(data []byte) (net.IP, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("txsock: short ipv4 packet")
	}
	return net.IP(data[16:20]), nil
}

func (s *Socket) sendIPv6(pkt *packet.Packet, data []byte) error {
	ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return fmt.Errorf("txsock: no IPv6 layer")
	}
	nh := int(ip6.NextHeader)
	conn, err := s.ipv6ConnFor(nh)
	if err != nil {
		return err
	}
	payload := data[40:] // skip the 40-byte fixed base header
	_, err = conn.WriteToIP(payload, &net.IPAddr{IP: ip6.DstIP})
	return err
}

func (s *Socket) ipv6ConnFor(nh int) (*net.IPConn, error) {
	if c, ok := s.v6[nh]; ok {
		return c, nil
	}
	network := fmt.Sprintf("ip6:%d", nh)
	pc, err := net.ListenIP(network, &net.IPAddr{})
	if err != nil {
		return nil, fmt.Errorf("txsock: listen raw ipv6 proto %d: %w", nh, err)
	}
	s.v6[nh] = pc
	return pc, nil
}

package catalog

import (
	"fmt"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("tcp-segment",
		"tcp-segment <size>\n  Split a TCP packet's payload into multiple segments of at most <size> bytes.",
		newTCPSegment)
}

type tcpSegment struct {
	size int
}

func newTCPSegment(args []string) (transform.Transformation, error) {
	if err := requireArgs("tcp-segment", args, 1); err != nil {
		return nil, &transform.OperatorError{Operator: "tcp-segment", Err: err}
	}
	size, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "tcp-segment", ArgIndex: 0, Err: err}
	}
	if size < 1 {
		return nil, &transform.OperatorError{Operator: "tcp-segment", ArgIndex: 0, Err: errRange("size", "[1,+inf)")}
	}
	return &tcpSegment{size: size}, nil
}

func (o *tcpSegment) Name() string          { return "tcp-segment" }
func (o *tcpSegment) Usage() string         { return "tcp-segment <size>" }
func (o *tcpSegment) IsDeterministic() bool { return true }
func (o *tcpSegment) Describe() []transform.Field {
	return []transform.Field{{Name: "size", Value: strconv.Itoa(o.size)}}
}

func (o *tcpSegment) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		segs, handled, err := splitTCP(pkt, o.size, nil, "")
		if err != nil {
			return nil, &transform.OperatorError{Operator: "tcp-segment", Err: err}
		}
		if !handled {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: "tcp-segment", Err: err}
			}
			continue
		}
		for i, sp := range segs {
			d := 0.0
			if i == 0 {
				d = pkt.Delay()
			}
			if err := out.Add(sp, d); err != nil {
				return nil, &transform.OperatorError{Operator: "tcp-segment", Err: err}
			}
		}
	}
	return out, nil
}

// splitTCP rewrites a TCP packet's payload into size-byte segments with
// successive sequence numbers, copying the IP header(s) onto each. If
// overlap > 0, that many random bytes are appended (position=="after") or
// prepended (position=="before") to every segment's payload, for the
// overlap-variant operators. Returns handled=false for non-TCP packets so
// callers can pass them through unchanged.
func splitTCP(pkt *packet.Packet, size int, overlapBytesFn func() []byte, position string) (segs []*packet.Packet, handled bool, err error) {
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		return nil, false, nil
	}
	payload := append([]byte(nil), tcp.Payload...)
	if len(payload) == 0 {
		payload = []byte{}
	}

	var network gopacket.SerializableLayer
	var netLayer gopacket.NetworkLayer
	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		c := *ip4
		network = &c
		netLayer = &c
	} else if ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		c := *ip6
		network = &c
		netLayer = &c
	} else {
		return nil, false, fmt.Errorf("tcp-segment: no IPv4/IPv6 layer found")
	}

	chunks := chunkBytes(payload, size)
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}

	out := make([]*packet.Packet, 0, len(chunks))
	seq := tcp.Seq
	for _, chunk := range chunks {
		body := chunk
		if overlapBytesFn != nil {
			ob := overlapBytesFn()
			if position == "before" {
				body = append(append([]byte(nil), ob...), body...)
			} else {
				body = append(append([]byte(nil), body...), ob...)
			}
		}

		tc := *tcp
		tc.Seq = seq
		tc.BaseLayer = layers.BaseLayer{}
		tc.SetNetworkLayerForChecksum(netLayer)

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, network, &tc, gopacket.Payload(body)); err != nil {
			return nil, true, fmt.Errorf("tcp-segment: serialize: %w", err)
		}
		np, err := packet.New(buf.Bytes(), linkTypeOf(pkt))
		if err != nil {
			return nil, true, fmt.Errorf("tcp-segment: decode segment: %w", err)
		}
		out = append(out, np)
		seq += uint32(len(chunk))
	}
	return out, true, nil
}

func chunkBytes(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var chunks [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

package catalog

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"
	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("field",
		"field <layer> <field> <value|random>\n  Set one named field on every packet carrying <layer>; no-op if absent.",
		newField)
}

type field struct {
	layer  string
	name   string
	value  string
	random bool
}

var fieldRanges = map[string][2]uint64{
	"ipv4.ttl":      {0, 255},
	"ipv4.protocol": {0, 255},
	"ipv6.hoplimit": {0, 255},
	"ipv6.plen":     {0, 65535},
	"ipv6.nh":       {0, 255},
	"tcp.sport":     {0, 65535},
	"tcp.dport":     {0, 65535},
	"tcp.window":    {0, 65535},
	"udp.sport":     {0, 65535},
	"udp.dport":     {0, 65535},
}

func newField(args []string) (transform.Transformation, error) {
	if err := requireArgs("field", args, 3); err != nil {
		return nil, &transform.OperatorError{Operator: "field", Err: err}
	}
	f := &field{layer: strings.ToLower(args[0]), name: strings.ToLower(args[1]), value: args[2]}
	if args[2] == "random" {
		f.random = true
	} else if rng, ok := fieldRanges[f.layer+"."+f.name]; ok {
		n, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "field", ArgIndex: 2, Err: err}
		}
		if n < rng[0] || n > rng[1] {
			return nil, &transform.OperatorError{Operator: "field", ArgIndex: 2, Err: errRange(f.layer+"."+f.name, fmt.Sprintf("[%d,%d]", rng[0], rng[1]))}
		}
	}
	return f, nil
}

func (f *field) Name() string          { return "field" }
func (f *field) Usage() string         { return "field <layer> <field> <value|random>" }
func (f *field) IsDeterministic() bool { return !f.random }

func (f *field) Describe() []transform.Field {
	return []transform.Field{{Name: "layer", Value: f.layer}, {Name: "field", Value: f.name}, {Name: "value", Value: f.value}}
}

func (f *field) Apply(pl *packet.List) (*packet.List, error) {
	out := pl.Clone()
	for _, pkt := range out.Items() {
		changed, err := f.setOn(pkt)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "field", Err: err}
		}
		if changed {
			if err := pkt.Rebuild(); err != nil {
				return nil, &transform.OperatorError{Operator: "field", Err: err}
			}
		}
	}
	return out, nil
}

// setOn mutates the named field in place on pkt's decoded layer, reporting
// whether a change was made. Layer or field absent is a no-op, per the
// catalog's field-operator contract.
func (f *field) setOn(pkt *packet.Packet) (bool, error) {
	switch f.layer {
	case "ipv4":
		l, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			return false, nil
		}
		return f.setIPv4(l)
	case "ipv6":
		l, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if !ok {
			return false, nil
		}
		return f.setIPv6(l)
	case "tcp":
		l, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if !ok {
			return false, nil
		}
		return f.setTCP(l)
	case "udp":
		l, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			return false, nil
		}
		return f.setUDP(l)
	default:
		return false, fmt.Errorf("field: unknown layer %q", f.layer)
	}
}

func (f *field) uintValue(max uint64) (uint64, error) {
	if f.random {
		return uint64(randUint32()) % (max + 1), nil
	}
	return strconv.ParseUint(f.value, 10, 64)
}

func (f *field) setIPv4(l *layers.IPv4) (bool, error) {
	switch f.name {
	case "ttl":
		v, err := f.uintValue(255)
		if err != nil {
			return false, err
		}
		l.TTL = uint8(v)
	case "protocol":
		v, err := f.uintValue(255)
		if err != nil {
			return false, err
		}
		l.Protocol = layers.IPProtocol(v)
	case "src":
		ip := net.ParseIP(f.value)
		if ip == nil {
			return false, fmt.Errorf("field: invalid ipv4 address %q", f.value)
		}
		l.SrcIP = ip
	case "dst":
		ip := net.ParseIP(f.value)
		if ip == nil {
			return false, fmt.Errorf("field: invalid ipv4 address %q", f.value)
		}
		l.DstIP = ip
	default:
		return false, nil
	}
	return true, nil
}

func (f *field) setIPv6(l *layers.IPv6) (bool, error) {
	switch f.name {
	case "hoplimit":
		v, err := f.uintValue(255)
		if err != nil {
			return false, err
		}
		l.HopLimit = uint8(v)
	case "plen":
		v, err := f.uintValue(65535)
		if err != nil {
			return false, err
		}
		l.Length = uint16(v)
	case "nh":
		v, err := f.uintValue(255)
		if err != nil {
			return false, err
		}
		l.NextHeader = layers.IPProtocol(v)
	default:
		return false, nil
	}
	return true, nil
}

func (f *field) setTCP(l *layers.TCP) (bool, error) {
	switch f.name {
	case "sport":
		v, err := f.uintValue(65535)
		if err != nil {
			return false, err
		}
		l.SrcPort = layers.TCPPort(v)
	case "dport":
		v, err := f.uintValue(65535)
		if err != nil {
			return false, err
		}
		l.DstPort = layers.TCPPort(v)
	case "window":
		v, err := f.uintValue(65535)
		if err != nil {
			return false, err
		}
		l.Window = uint16(v)
	case "seq":
		v, err := f.uintValue(4294967295)
		if err != nil {
			return false, err
		}
		l.Seq = uint32(v)
	default:
		return false, nil
	}
	return true, nil
}

func (f *field) setUDP(l *layers.UDP) (bool, error) {
	switch f.name {
	case "sport":
		v, err := f.uintValue(65535)
		if err != nil {
			return false, err
		}
		l.SrcPort = layers.UDPPort(v)
	case "dport":
		v, err := f.uintValue(65535)
		if err != nil {
			return false, err
		}
		l.DstPort = layers.UDPPort(v)
	default:
		return false, nil
	}
	return true, nil
}

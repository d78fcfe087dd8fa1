package catalog

import (
	"strconv"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

func init() {
	transform.Global().Register("ipv6-hop",
		"ipv6-hop <value|random>\n  Overwrite Hop-Limit on each IPv6 packet.",
		newIPv6Overwrite("ipv6-hop", 7, 255))
	transform.Global().Register("ipv6-plen",
		"ipv6-plen <value|random>\n  Overwrite Payload Length on each IPv6 packet.",
		newIPv6Overwrite("ipv6-plen", 4, 65535))
	transform.Global().Register("ipv6-nh",
		"ipv6-nh <value|random>\n  Overwrite Next-Header on each IPv6 packet.",
		newIPv6Overwrite("ipv6-nh", 6, 255))
}

// ipv6Overwrite overwrites one field of the IPv6 base header: Hop-Limit
// (1 byte at offset 7), Next-Header (1 byte at offset 6), or Payload
// Length (2 bytes at offset 4). These are raw-value fuzz operators: no
// checksum recompute is implied, since IPv6 carries no header checksum.
type ipv6Overwrite struct {
	opName string
	offset int
	width  int // 1 or 2 bytes
	value  uint64
	random bool
	raw    string
}

func newIPv6Overwrite(opName string, offset int, max uint64) transform.Constructor {
	width := 1
	if max > 255 {
		width = 2
	}
	return func(args []string) (transform.Transformation, error) {
		if err := requireArgs(opName, args, 1); err != nil {
			return nil, &transform.OperatorError{Operator: opName, Err: err}
		}
		o := &ipv6Overwrite{opName: opName, offset: offset, width: width, raw: args[0]}
		if args[0] == "random" {
			o.random = true
			return o, nil
		}
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, &transform.OperatorError{Operator: opName, ArgIndex: 0, Err: err}
		}
		if v > max {
			return nil, &transform.OperatorError{Operator: opName, ArgIndex: 0, Err: errRange("value", "0-"+strconv.FormatUint(max, 10))}
		}
		o.value = v
		return o, nil
	}
}

func (o *ipv6Overwrite) Name() string          { return o.opName }
func (o *ipv6Overwrite) Usage() string         { return o.opName + " <value|random>" }
func (o *ipv6Overwrite) IsDeterministic() bool { return !o.random }
func (o *ipv6Overwrite) Describe() []transform.Field {
	return []transform.Field{{Name: "value", Value: o.raw}}
}

func (o *ipv6Overwrite) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		prefix, base, rest, ok := ipv6Parts(pkt)
		if !ok {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: o.opName, Err: err}
			}
			continue
		}
		v := o.value
		if o.random {
			if o.width == 1 {
				v = uint64(randUint32() % 256)
			} else {
				v = uint64(randUint32() % 65536)
			}
		}
		hdr := append([]byte(nil), base...)
		if o.width == 1 {
			hdr[o.offset] = byte(v)
		} else {
			hdr[o.offset] = byte(v >> 8)
			hdr[o.offset+1] = byte(v)
		}
		np, err := assembleIPv6(prefix, hdr, rest, linkTypeOf(pkt))
		if err != nil {
			return nil, &transform.OperatorError{Operator: o.opName, Err: err}
		}
		if err := out.Add(np, pkt.Delay()); err != nil {
			return nil, &transform.OperatorError{Operator: o.opName, Err: err}
		}
	}
	return out, nil
}

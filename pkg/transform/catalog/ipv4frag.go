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
	transform.Global().Register("ipv4-fragment",
		"ipv4-fragment <size>\n  Fragment each IPv4 packet into fragments of at most <size> bytes.",
		newIPv4Fragment)
}

type ipv4Fragment struct {
	size int
}

func newIPv4Fragment(args []string) (transform.Transformation, error) {
	if err := requireArgs("ipv4-fragment", args, 1); err != nil {
		return nil, &transform.OperatorError{Operator: "ipv4-fragment", Err: err}
	}
	size, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, &transform.OperatorError{Operator: "ipv4-fragment", ArgIndex: 0, Err: err}
	}
	if size < 28 { // 20-byte header + at least 8 bytes of payload
		return nil, &transform.OperatorError{Operator: "ipv4-fragment", ArgIndex: 0, Err: errRange("size", "[28,+inf)")}
	}
	return &ipv4Fragment{size: size}, nil
}

func (o *ipv4Fragment) Name() string          { return "ipv4-fragment" }
func (o *ipv4Fragment) Usage() string         { return "ipv4-fragment <size>" }
func (o *ipv4Fragment) IsDeterministic() bool { return true }
func (o *ipv4Fragment) Describe() []transform.Field {
	return []transform.Field{{Name: "size", Value: strconv.Itoa(o.size)}}
}

func (o *ipv4Fragment) Apply(pl *packet.List) (*packet.List, error) {
	out := packet.NewList()
	for _, pkt := range pl.Items() {
		ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			if err := out.Add(pkt, pkt.Delay()); err != nil {
				return nil, &transform.OperatorError{Operator: "ipv4-fragment", Err: err}
			}
			continue
		}
		frags, err := fragmentIPv4(ip, o.size, 0)
		if err != nil {
			return nil, &transform.OperatorError{Operator: "ipv4-fragment", Err: err}
		}
		for i, fp := range frags {
			d := 0.0
			if i == 0 {
				d = pkt.Delay()
			}
			if err := out.Add(fp, d); err != nil {
				return nil, &transform.OperatorError{Operator: "ipv4-fragment", Err: err}
			}
		}
	}
	return out, nil
}

// fragmentIPv4 splits ip's upper-layer payload into fragments whose wire
// length is at most maxSize. The first fragment carries every IP option;
// later fragments carry only the options whose copy-on-fragment bit is
// set. When overlap > 0, that many random bytes are appended to every
// fragment's payload after the normal split, for the overlap variant.
func fragmentIPv4(ip *layers.IPv4, maxSize, overlap int) ([]*packet.Packet, error) {
	payload := ip.Payload
	headerLen := 20 + optionsLen(ip.Options)
	copyOptions := filterCopyOptions(ip.Options)
	copyHeaderLen := 20 + optionsLen(copyOptions)

	chunkSize := (maxSize - copyHeaderLen) &^ 7 // round down to multiple of 8
	if chunkSize <= 0 {
		return nil, fmt.Errorf("ipv4-fragment: size %d too small for header length %d", maxSize, copyHeaderLen)
	}
	firstChunk := (maxSize - headerLen) &^ 7
	if firstChunk <= 0 {
		firstChunk = chunkSize
	}

	var frags []*packet.Packet
	offset := 0
	first := true
	for offset < len(payload) || (first && len(payload) == 0) {
		limit := chunkSize
		if first {
			limit = firstChunk
		}
		end := offset + limit
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]
		more := end < len(payload)
		if overlap > 0 {
			chunk = append(append([]byte(nil), chunk...), randBytes(overlap)...)
		}

		hdr := *ip
		if first {
			hdr.Options = ip.Options
		} else {
			hdr.Options = copyOptions
		}
		hdr.FragOffset = uint16(offset / 8)
		if more {
			hdr.Flags = ip.Flags | layers.IPv4MoreFragments
		} else {
			hdr.Flags = ip.Flags &^ layers.IPv4MoreFragments
		}
		hdr.Payload = nil

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, &hdr, gopacket.Payload(chunk)); err != nil {
			return nil, fmt.Errorf("ipv4-fragment: serialize: %w", err)
		}
		fp, err := packet.New(buf.Bytes(), packet.LinkNone)
		if err != nil {
			return nil, fmt.Errorf("ipv4-fragment: decode fragment: %w", err)
		}
		frags = append(frags, fp)

		offset = end
		first = false
		if !more {
			break
		}
	}
	return frags, nil
}

func optionsLen(opts []layers.IPv4Option) int {
	n := 0
	for _, o := range opts {
		if o.OptionType == 0 || o.OptionType == 1 {
			n++ // EOL/NOP: one byte, no length field
			continue
		}
		n += 2 + len(o.OptionData)
	}
	return n
}

// filterCopyOptions keeps only options whose high bit (copy-on-fragment)
// is set, per RFC 791 §3.1.
func filterCopyOptions(opts []layers.IPv4Option) []layers.IPv4Option {
	var kept []layers.IPv4Option
	for _, o := range opts {
		if o.OptionType&0x80 != 0 {
			kept = append(kept, o)
		}
	}
	return kept
}

package packet

import (
	"fmt"
	"time"
)

// minSendDelay is the threshold below which a per-packet delay is treated
// as zero, avoiding gratuitous scheduling jitter for waits under 10 ms.
const minSendDelay = 10 * time.Millisecond

// List is an ordered, index-addressable sequence of Packet. Operators
// receive a *List and return a *List; per the Transformation contract they
// may return the same instance or a new one, and callers must re-bind to
// whatever is returned.
type List struct {
	items []*Packet
}

// NewList wraps pkts (copying the slice header, not the packets) into a List.
func NewList(pkts ...*Packet) *List {
	items := make([]*Packet, len(pkts))
	copy(items, pkts)
	return &List{items: items}
}

// Len returns the number of packets.
func (l *List) Len() int { return len(l.items) }

// At returns the packet at i, or an error if out of range.
func (l *List) At(i int) (*Packet, error) {
	if i < 0 || i >= len(l.items) {
		return nil, fmt.Errorf("packet list: index %d out of range [0,%d)", i, len(l.items))
	}
	return l.items[i], nil
}

// Add appends pkt with the given pre-send delay.
func (l *List) Add(pkt *Packet, delay float64) error {
	if err := pkt.SetDelay(delay); err != nil {
		return err
	}
	l.items = append(l.items, pkt)
	return nil
}

// Insert places pkt at index i, shifting later elements right.
// i == Len() appends.
func (l *List) Insert(i int, pkt *Packet, delay float64) error {
	if i < 0 || i > len(l.items) {
		return fmt.Errorf("packet list: insert index %d out of range [0,%d]", i, len(l.items))
	}
	if err := pkt.SetDelay(delay); err != nil {
		return err
	}
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = pkt
	return nil
}

// Remove deletes the packet at index i.
func (l *List) Remove(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("packet list: remove index %d out of range [0,%d)", i, len(l.items))
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

// Replace overwrites the packet at index i.
func (l *List) Replace(i int, pkt *Packet) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("packet list: replace index %d out of range [0,%d)", i, len(l.items))
	}
	l.items[i] = pkt
	return nil
}

// SetDelay sets (not accumulates) the delay of the packet at index i.
func (l *List) SetDelay(i int, seconds float64) error {
	pkt, err := l.At(i)
	if err != nil {
		return err
	}
	return pkt.SetDelay(seconds)
}

// Clone deep-copies the list and every packet in it.
func (l *List) Clone() *List {
	out := make([]*Packet, len(l.items))
	for i, p := range l.items {
		out[i] = p.Clone()
	}
	return &List{items: out}
}

// Items exposes the underlying slice for read-only iteration; callers must
// not retain it across a mutating call.
func (l *List) Items() []*Packet { return l.items }

// Sender abstracts the raw-socket send path so tests can substitute a fake.
type Sender interface {
	SendL3(pkt *Packet) error
	SendL2(pkt *Packet) error
}

// sendDelay clamps delays under minSendDelay to zero.
func sendDelay(pkt *Packet) time.Duration {
	d := time.Duration(pkt.Delay() * float64(time.Second))
	if d < minSendDelay {
		return 0
	}
	return d
}

// SendAll transmits every packet via s.SendL3, sleeping for each packet's
// delay (clamped per sendDelay) before sending it.
func (l *List) SendAll(s Sender) error {
	for _, pkt := range l.items {
		if d := sendDelay(pkt); d > 0 {
			time.Sleep(d)
		}
		if err := s.SendL3(pkt); err != nil {
			return fmt.Errorf("packet list: send: %w", err)
		}
	}
	return nil
}

// SendAllLink transmits every packet via s.SendL2 (including the link
// layer), honoring delays identically to SendAll.
func (l *List) SendAllLink(s Sender) error {
	for _, pkt := range l.items {
		if d := sendDelay(pkt); d > 0 {
			time.Sleep(d)
		}
		if err := s.SendL2(pkt); err != nil {
			return fmt.Errorf("packet list: send link: %w", err)
		}
	}
	return nil
}

package catalog

import (
	"testing"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// opaquePacket builds a Packet that decodes as an undecoded payload (first
// nibble outside 4/6), so tests exercising list-structure operators don't
// need a full, checksummed IP header.
func opaquePacket(t *testing.T, tag byte) *packet.Packet {
	t.Helper()
	p, err := packet.New([]byte{0x00, tag, 0xaa, 0xbb}, packet.LinkNone)
	if err != nil {
		t.Fatalf("packet.New: %v", err)
	}
	return p
}

func opaqueList(t *testing.T, n int) *packet.List {
	t.Helper()
	pkts := make([]*packet.Packet, n)
	for i := range pkts {
		pkts[i] = opaquePacket(t, byte(i))
	}
	return packet.NewList(pkts...)
}

func newOp(t *testing.T, name string, args ...string) transform.Transformation {
	t.Helper()
	op, err := transform.Global().New(name, args)
	if err != nil {
		t.Fatalf("New(%s, %v): %v", name, args, err)
	}
	return op
}

func TestDropProbZeroIsIdentity(t *testing.T) {
	op := newOp(t, "drop-prob", "0")
	in := opaqueList(t, 5)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 5 {
		t.Fatalf("Len() = %d, want 5 (p=0 is identity)", out.Len())
	}
}

func TestDropProbOneEmptiesList(t *testing.T) {
	op := newOp(t, "drop-prob", "1")
	in := opaqueList(t, 5)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (p=1 drops everything)", out.Len())
	}
}

func TestDropProbOnEmptyListIsNoop(t *testing.T) {
	op := newOp(t, "drop-prob", "0.5")
	in := packet.NewList()
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", out.Len())
	}
}

func TestDropProbRejectsOutOfRange(t *testing.T) {
	if _, err := transform.Global().New("drop-prob", []string{"1.5"}); err == nil {
		t.Fatal("expected error for p > 1")
	}
	if _, err := transform.Global().New("drop-prob", []string{"-0.1"}); err == nil {
		t.Fatal("expected error for p < 0")
	}
}

func TestDropOneOutOfRangeIsNoop(t *testing.T) {
	op := newOp(t, "drop-one", "99")
	in := opaqueList(t, 3)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (out-of-range index is a no-op)", out.Len())
	}
}

func TestDropOneFirstAndLast(t *testing.T) {
	first := newOp(t, "drop-one", "first")
	in := opaqueList(t, 3)
	out, err := first.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", out.Len())
	}

	last := newOp(t, "drop-one", "last")
	out2, err := last.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out2.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", out2.Len())
	}
}

func TestReorderReverseTwiceIsIdentity(t *testing.T) {
	op := newOp(t, "reorder", "reverse")
	in := opaqueList(t, 4)

	once, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	twice, err := op.Apply(once)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if twice.Len() != in.Len() {
		t.Fatalf("Len() = %d, want %d", twice.Len(), in.Len())
	}
	for i := 0; i < in.Len(); i++ {
		a, _ := in.At(i)
		b, _ := twice.At(i)
		if string(a.Bytes()) != string(b.Bytes()) {
			t.Fatalf("index %d: reverse∘reverse is not identity", i)
		}
	}
}

func TestReorderOnEmptyListIsNoop(t *testing.T) {
	op := newOp(t, "reorder", "reverse")
	out, err := op.Apply(packet.NewList())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", out.Len())
	}
}

func TestReorderRejectsUnknownMethod(t *testing.T) {
	if _, err := transform.Global().New("reorder", []string{"shuffle"}); err == nil {
		t.Fatal("expected error for unknown reorder method")
	}
}

func TestDuplicateFirstGrowsListByOne(t *testing.T) {
	op := newOp(t, "duplicate", "first")
	in := opaqueList(t, 3)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", out.Len())
	}
	a, _ := out.At(0)
	b, _ := out.At(1)
	if string(a.Bytes()) != string(b.Bytes()) {
		t.Fatal("duplicate(first) should place an identical copy immediately after")
	}
}

func TestDuplicateOnEmptyListIsNoop(t *testing.T) {
	op := newOp(t, "duplicate", "first")
	out, err := op.Apply(packet.NewList())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", out.Len())
	}
}

func TestSelectMapsIndices(t *testing.T) {
	op := newOp(t, "select", "2", "0", "0")
	in := opaqueList(t, 3)
	out, err := op.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", out.Len())
	}
	want := []int{2, 0, 0}
	for i, wantIdx := range want {
		got, _ := out.At(i)
		orig, _ := in.At(wantIdx)
		if string(got.Bytes()) != string(orig.Bytes()) {
			t.Fatalf("select index %d: got packet != input[%d]", i, wantIdx)
		}
	}
}

func TestSelectOutOfRangeIsError(t *testing.T) {
	op := newOp(t, "select", "5")
	in := opaqueList(t, 2)
	if _, err := op.Apply(in); err == nil {
		t.Fatal("expected error for out-of-range select index")
	}
}

func TestSelectRequiresAtLeastOneIndex(t *testing.T) {
	if _, err := transform.Global().New("select", nil); err == nil {
		t.Fatal("expected error for select with no indices")
	}
}

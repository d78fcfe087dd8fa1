package domain

import "testing"

func TestIntRangeLen(t *testing.T) {
	d, err := NewIntRange(1000, 1002, 1)
	if err != nil {
		t.Fatalf("NewIntRange: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	v, err := d.Get(2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if v.(int64) != 1002 {
		t.Fatalf("Get(2) = %v, want 1002", v)
	}
}

func TestIntRangeSingleValue(t *testing.T) {
	d, err := NewIntRange(5, 5, 1)
	if err != nil {
		t.Fatalf("NewIntRange: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	v, _ := d.Get(0)
	if v.(int64) != 5 {
		t.Fatalf("Get(0) = %v, want 5", v)
	}
}

func TestIntRangeRejectsZeroStep(t *testing.T) {
	if _, err := NewIntRange(0, 10, 0); err == nil {
		t.Fatal("expected error for zero step")
	}
}

func TestIntRangeRejectsWrongDirection(t *testing.T) {
	if _, err := NewIntRange(10, 0, 1); err == nil {
		t.Fatal("expected error for start>stop with positive step")
	}
	if _, err := NewIntRange(0, 10, -1); err == nil {
		t.Fatal("expected error for start<stop with negative step")
	}
}

func TestParseRangeVariants(t *testing.T) {
	cases := []struct {
		tok    string
		length int
	}{
		{"range 3", 4},
		{"range 1000 1002", 3},
		{"range 0 10 2", 6},
	}
	for _, c := range cases {
		d, err := Parse(c.tok)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.tok, err)
		}
		if d.Len() != c.length {
			t.Errorf("Parse(%q).Len() = %d, want %d", c.tok, d.Len(), c.length)
		}
	}
}

func TestParseBareLiteral(t *testing.T) {
	d, err := Parse("42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, ok := d.(*Singleton)
	if !ok || s.Kind != "int" {
		t.Fatalf("Parse(42) = %#v, want int singleton", d)
	}

	d, err = Parse("hello")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, ok = d.(*Singleton)
	if !ok || s.Kind != "str" {
		t.Fatalf("Parse(hello) = %#v, want str singleton", d)
	}
}

func TestDecomposeMixedRadix(t *testing.T) {
	d0, _ := NewIntRange(0, 1, 1) // len 2
	d1, _ := NewIntRange(0, 2, 1) // len 3
	domains := []Domain{d0, d1}

	seen := map[[2]int64]bool{}
	for i := 0; i < product(domains); i++ {
		values, err := decompose(i, domains)
		if err != nil {
			t.Fatalf("decompose(%d): %v", i, err)
		}
		key := [2]int64{values[0].(int64), values[1].(int64)}
		if seen[key] {
			t.Fatalf("decompose produced duplicate tuple %v at index %d", key, i)
		}
		seen[key] = true
	}
	if len(seen) != 6 {
		t.Fatalf("got %d distinct tuples, want 6", len(seen))
	}
}

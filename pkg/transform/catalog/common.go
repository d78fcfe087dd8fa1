// Package catalog implements the concrete recipe operators: drop,
// duplicate, reorder, select, delay, echo/print/summary, field-set,
// IPv4/IPv6 fragmentation, TCP segmentation, overlap variants, and IPv6
// extension-header manipulation. Every operator registers itself into
// transform.Global() at package-init time, realizing the static registry
// redesign in place of filesystem plugin discovery.
package catalog

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// sharedRand is the one RNG every non-deterministic operator in a process
// draws from, seeded from the clock once at package load. No operator
// holds an RNG of its own.
var (
	sharedMu   sync.Mutex
	sharedRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// randIntn draws a uniform int in [0,n) from the shared RNG, safe for
// concurrent catalog use across workers.
func randIntn(n int) int {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedRand.Intn(n)
}

func randFloat64() float64 {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedRand.Float64()
}

func randUint32() uint32 {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedRand.Uint32()
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	sharedMu.Lock()
	sharedRand.Read(b)
	sharedMu.Unlock()
	return b
}

// target is the common "first|last|random|integer" selector shared by
// drop-one, duplicate, and delay.
type target struct {
	kind string // "first", "last", "random", "integer", or "all" (delay only)
	idx  int    // valid when kind == "integer"
}

func parseTarget(s string) (target, error) {
	switch s {
	case "first", "last", "random", "all":
		return target{kind: s}, nil
	default:
		v, err := strconv.Atoi(s)
		if err != nil {
			return target{}, fmt.Errorf("target must be first|last|random|integer, got %q", s)
		}
		return target{kind: "integer", idx: v}, nil
	}
}

// resolve maps the target to a concrete index into a list of length n.
// ok is false when the index is out of range (a no-op for the caller, per
// the drop/duplicate/delay boundary-behavior invariant).
func (t target) resolve(n int) (idx int, ok bool) {
	if n == 0 {
		return 0, false
	}
	switch t.kind {
	case "first":
		return 0, true
	case "last":
		return n - 1, true
	case "random":
		return randIntn(n), true
	case "integer":
		if t.idx < 0 || t.idx >= n {
			return 0, false
		}
		return t.idx, true
	default:
		return 0, false
	}
}

func requireArgs(op string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", op, n, len(args))
	}
	return nil
}

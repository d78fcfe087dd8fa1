package engine

import (
	"sync"

	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// atomicRecipe is a reference cell holding the currently-active Recipe for
// one direction. Readers take a shared lock for the duration of exactly one
// Apply; writers (the driver, between test cases) take an exclusive lock
// only to swap the pointer, never across a subprocess or an Apply call.
// Modeled on spec.md §5's "per-reference mutex" requirement rather than
// sync/atomic.Value, so the shared/exclusive distinction is explicit in the
// type rather than implied by atomic.Value's copy semantics.
type atomicRecipe struct {
	mu sync.RWMutex
	r  *transform.Recipe
}

func (a *atomicRecipe) Get() *transform.Recipe {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.r
}

func (a *atomicRecipe) Set(r *transform.Recipe) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.r = r
}

// atomicPath is the same reference-cell discipline applied to a capture
// file path string.
type atomicPath struct {
	mu   sync.RWMutex
	path string
}

func (a *atomicPath) Get() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.path
}

func (a *atomicPath) Set(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.path = path
}

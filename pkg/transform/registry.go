package transform

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a Transformation from its raw mod_opts. It is
// responsible for validating arity and parsing each argument into typed
// fields, returning an OperatorError on failure.
type Constructor func(args []string) (Transformation, error)

// Registry is a static, build-time table mapping operator name to
// constructor. This replaces the filesystem/name-mangling plugin discovery
// of the source system: unknown names become a configuration error at load,
// never an import error.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
	usage map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor), usage: make(map[string]string)}
}

// global is the process-wide catalog registry populated by each operator's
// init() via Register, mirroring the static-table redesign: operators never
// register themselves dynamically from disk.
var global = NewRegistry()

// Global returns the process-wide registry every catalog operator
// registers into at package-init time.
func Global() *Registry { return global }

// Register adds name to the registry. It panics on duplicate registration,
// since that indicates two catalog packages claiming the same operator
// name — a build-time programming error, not a runtime condition.
func (r *Registry) Register(name, usage string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		panic(fmt.Sprintf("transform: duplicate registration for %q", name))
	}
	r.ctors[name] = ctor
	r.usage[name] = usage
}

// New constructs the named operator from args, or a configuration error
// naming the unknown operator.
func (r *Registry) New(name string, args []string) (Transformation, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transform: unknown operator %q", name)
	}
	return ctor(args)
}

// Usage returns the registered usage string for name.
func (r *Registry) Usage(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.usage[name]
	if !ok {
		return "", fmt.Errorf("transform: unknown operator %q", name)
	}
	return u, nil
}

// Names returns every registered operator name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

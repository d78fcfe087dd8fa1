package domain

import (
	"fmt"

	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// decompose applies the canonical positional mixed-radix rule to index i
// over domains d0..dk-1: value j is (i / prod(len(d0..dj-1))) mod len(dj).
// This fixes enumeration order across runs and machines.
func decompose(i int, domains []Domain) ([]Value, error) {
	values := make([]Value, len(domains))
	rem := i
	for j, d := range domains {
		n := d.Len()
		v, err := d.Get(rem % n)
		if err != nil {
			return nil, err
		}
		values[j] = v
		rem /= n
	}
	return values, nil
}

func product(domains []Domain) int {
	p := 1
	for _, d := range domains {
		p *= d.Len()
	}
	return p
}

// ArgsRenderer turns a decomposed value tuple into the string arguments a
// transform.Constructor expects. Most operators take values positionally
// and render them with fmt.Sprint; a few (see catalog) need bespoke
// rendering and supply their own.
type ArgsRenderer func(values []Value) []string

// DefaultArgsRenderer renders each value with fmt.Sprint, one arg per value.
func DefaultArgsRenderer(values []Value) []string {
	args := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			args[i] = ""
			continue
		}
		args[i] = fmt.Sprint(v)
	}
	return args
}

// OperatorGenerator is a tuple (operator name, domains) that enumerates
// prod(len(d) for d in domains) distinct operator instances by
// constructing the named operator from the registry with the
// mixed-radix-decomposed arguments at each index.
type OperatorGenerator struct {
	Name     string
	Domains  []Domain
	Registry *transform.Registry
	Render   ArgsRenderer
}

// NewOperatorGenerator validates the operator name against reg and returns
// a generator ready to enumerate. render may be nil to use
// DefaultArgsRenderer.
func NewOperatorGenerator(reg *transform.Registry, name string, domains []Domain, render ArgsRenderer) (*OperatorGenerator, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("domain: operator %s requires at least one domain", name)
	}
	if _, err := reg.Usage(name); err != nil {
		return nil, err
	}
	if render == nil {
		render = DefaultArgsRenderer
	}
	return &OperatorGenerator{Name: name, Domains: domains, Registry: reg, Render: render}, nil
}

// Len returns the number of distinct instances this generator enumerates.
func (g *OperatorGenerator) Len() int { return product(g.Domains) }

// At constructs the i'th operator instance.
func (g *OperatorGenerator) At(i int) (transform.Transformation, error) {
	if i < 0 || i >= g.Len() {
		return nil, fmt.Errorf("domain: operator generator %s: index %d out of range [0,%d)", g.Name, i, g.Len())
	}
	values, err := decompose(i, g.Domains)
	if err != nil {
		return nil, err
	}
	return g.Registry.New(g.Name, g.Render(values))
}

// RecipeGenerator is the mixed-radix composition of OperatorGenerators for
// one direction (ingress or egress). Its length is the product of its
// operators' lengths; At(i) builds the full Recipe for index i.
type RecipeGenerator struct {
	name      string
	operators []*OperatorGenerator
}

// NewRecipeGenerator composes ops in configuration order.
func NewRecipeGenerator(name string, ops []*OperatorGenerator) *RecipeGenerator {
	return &RecipeGenerator{name: name, operators: ops}
}

// Len returns the product of each operator generator's length (1 for an
// empty recipe generator, i.e. the identity recipe).
func (g *RecipeGenerator) Len() int {
	p := 1
	for _, op := range g.operators {
		p *= op.Len()
	}
	return p
}

// At builds the i'th Recipe via positional mixed-radix decomposition over
// the operator generators, in the same style as an individual operator's
// own argument decomposition.
func (g *RecipeGenerator) At(i int) (*transform.Recipe, error) {
	n := g.Len()
	if i < 0 || i >= n {
		return nil, fmt.Errorf("domain: recipe generator %s: index %d out of range [0,%d)", g.name, i, n)
	}
	steps := make([]transform.Transformation, len(g.operators))
	rem := i
	for j, op := range g.operators {
		opLen := op.Len()
		step, err := op.At(rem % opLen)
		if err != nil {
			return nil, err
		}
		steps[j] = step
		rem /= opLen
	}
	return transform.NewRecipe(g.name, steps...), nil
}

// IsDeterministic reports whether the instance at index 0 of every operator
// generator is deterministic. Other indices are not inspected, so for an
// operator whose determinism depends on its arguments (a random target, a
// drop probability) the recipe at another index can differ.
func (g *RecipeGenerator) IsDeterministic() (bool, error) {
	for _, op := range g.operators {
		inst, err := op.At(0)
		if err != nil {
			return false, err
		}
		if !inst.IsDeterministic() {
			return false, nil
		}
	}
	return true, nil
}

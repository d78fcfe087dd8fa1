package recipedoc

import (
	"fmt"

	"github.com/jhkim/fragscapy-go/pkg/domain"
	"github.com/jhkim/fragscapy-go/pkg/nfrule"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// Plan is the fully-resolved result of building a validated Document: the
// command to run, the Queue Rules to install, and the per-direction
// RecipeGenerators that enumerate spec.md §4.4's Cartesian product.
type Plan struct {
	Cmd     string
	Rules   []nfrule.Rule
	Input   *domain.RecipeGenerator
	Output  *domain.RecipeGenerator
}

// Build validates doc and compiles it into a Plan against reg (normally
// transform.Global()).
func Build(doc *Document, reg *transform.Registry) (*Plan, error) {
	v := NewValidator()
	if err := v.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", err, v.Errors)
	}

	rules := make([]nfrule.Rule, 0, len(doc.NFRules))
	for _, spec := range doc.NFRules {
		rules = append(rules, toRule(spec))
	}

	input, err := buildGenerator("input", doc.Input, reg)
	if err != nil {
		return nil, err
	}
	output, err := buildGenerator("output", doc.Output, reg)
	if err != nil {
		return nil, err
	}

	return &Plan{Cmd: doc.Cmd, Rules: rules, Input: input, Output: output}, nil
}

func buildGenerator(name string, specs []OperatorSpec, reg *transform.Registry) (*domain.RecipeGenerator, error) {
	ops := make([]*domain.OperatorGenerator, 0, len(specs))
	for i, spec := range specs {
		domains := make([]domain.Domain, 0, len(spec.ModOpts))
		for j, raw := range spec.ModOpts {
			tok := fmt.Sprint(raw)
			d, err := domain.Parse(tok)
			if err != nil {
				if spec.Optional {
					continue
				}
				return nil, fmt.Errorf("recipedoc: %s[%d].mod_opts[%d]: %w", name, i, j, err)
			}
			domains = append(domains, d)
		}
		if len(domains) == 0 {
			domains = append(domains, &domain.Singleton{Kind: "none"})
		}
		og, err := domain.NewOperatorGenerator(reg, spec.ModName, domains, nil)
		if err != nil {
			return nil, fmt.Errorf("recipedoc: %s[%d]: %w", name, i, err)
		}
		ops = append(ops, og)
	}
	return domain.NewRecipeGenerator(name, ops), nil
}

package recipedoc

import (
	"fmt"

	"github.com/jhkim/fragscapy-go/pkg/nfrule"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// Validator accumulates Errors and Warnings across a Document, each
// prefixed with a JSON-path-precise location, mirroring the teacher
// validator.Validator's accumulator style.
type Validator struct {
	Errors   []string
	Warnings []string
}

// NewValidator constructs an empty Validator.
func NewValidator() *Validator { return &Validator{} }

// HasErrors reports whether any validation error was recorded.
func (v *Validator) HasErrors() bool { return len(v.Errors) > 0 }

// Validate checks doc: a present, non-empty `cmd`; each nfrules entry names
// at least one chain and one family, an even qnum and an empty, tcp or udp
// proto (an empty host or host6 adds a warning); each input/output operator
// spec has a mod_name naming a registered operator. Every message starts
// with its JSON path. mod_opts are not checked against the operator's
// constructor here, and keys the Document type does not define are not
// reported.
func (v *Validator) Validate(doc *Document) error {
	v.Errors = nil
	v.Warnings = nil

	if doc.Cmd == "" {
		v.Errors = append(v.Errors, "cmd is required")
	}

	for i, r := range doc.NFRules {
		v.validateNFRule(i, r)
	}
	for i, op := range doc.Input {
		v.validateOperatorSpec(fmt.Sprintf("input[%d]", i), op)
	}
	for i, op := range doc.Output {
		v.validateOperatorSpec(fmt.Sprintf("output[%d]", i), op)
	}

	if v.HasErrors() {
		return fmt.Errorf("recipedoc: validation failed with %d error(s)", len(v.Errors))
	}
	return nil
}

func (v *Validator) validateNFRule(i int, r NFRuleSpec) {
	path := fmt.Sprintf("nfrules[%d]", i)
	if !r.InputChain && !r.OutputChain {
		v.Errors = append(v.Errors, path+": at least one of input_chain/output_chain is required")
	}
	if !r.IPv4 && !r.IPv6 {
		v.Errors = append(v.Errors, path+": at least one of ipv4/ipv6 is required")
	}
	if r.QNum%2 != 0 {
		v.Errors = append(v.Errors, fmt.Sprintf("%s.qnum: must be even, got %d", path, r.QNum))
	}
	if r.IPv4 && r.Host == "" {
		v.Warnings = append(v.Warnings, path+".host: empty host matches all IPv4 traffic")
	}
	if r.IPv6 && r.Host6 == "" {
		v.Warnings = append(v.Warnings, path+".host6: empty host6 matches all IPv6 traffic")
	}
	if r.Proto != "" && r.Proto != "tcp" && r.Proto != "udp" {
		v.Errors = append(v.Errors, fmt.Sprintf("%s.proto: unsupported protocol %q", path, r.Proto))
	}
}

func (v *Validator) validateOperatorSpec(path string, op OperatorSpec) {
	if op.ModName == "" {
		v.Errors = append(v.Errors, path+".mod_name is required")
		return
	}
	if _, err := transform.Global().Usage(op.ModName); err != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("%s.mod_name: unknown operator %q", path, op.ModName))
	}
}

// toRule converts a validated NFRuleSpec into an nfrule.Rule.
func toRule(spec NFRuleSpec) nfrule.Rule {
	var chain nfrule.Chain
	if spec.InputChain {
		chain |= nfrule.ChainIngress
	}
	if spec.OutputChain {
		chain |= nfrule.ChainEgress
	}
	var fam nfrule.Family
	if spec.IPv4 {
		fam |= nfrule.FamilyV4
	}
	if spec.IPv6 {
		fam |= nfrule.FamilyV6
	}
	return nfrule.Rule{
		Chain: chain,
		Fam:   fam,
		Proto: spec.Proto,
		Host:  spec.Host,
		Host6: spec.Host6,
		Port:  spec.Port,
		QNum:  spec.QNum,
	}
}

package recipedoc

import (
	"testing"

	"github.com/jhkim/fragscapy-go/pkg/transform"
	_ "github.com/jhkim/fragscapy-go/pkg/transform/catalog"
)

func TestBuildRejectsInvalidDocument(t *testing.T) {
	doc := &Document{}
	if _, err := Build(doc, transform.Global()); err == nil {
		t.Fatal("expected error for document missing cmd")
	}
}

func TestBuildCompilesPlan(t *testing.T) {
	doc := &Document{
		Cmd: "echo hi",
		NFRules: []NFRuleSpec{
			{Host: "10.0.0.1", IPv4: true, OutputChain: true, QNum: 1000},
		},
		Input: []OperatorSpec{
			{ModName: "drop-prob", ModOpts: []interface{}{"seq_float 0 0.5 1"}},
		},
		Output: []OperatorSpec{
			{ModName: "drop-prob", ModOpts: []interface{}{"0"}},
		},
	}

	plan, err := Build(doc, transform.Global())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Cmd != "echo hi" {
		t.Fatalf("Cmd = %q", plan.Cmd)
	}
	if len(plan.Rules) != 1 {
		t.Fatalf("len(Rules) = %d, want 1", len(plan.Rules))
	}
	if plan.Input.Len() != 3 {
		t.Fatalf("Input.Len() = %d, want 3 (seq_float of 3 values)", plan.Input.Len())
	}
	if plan.Output.Len() != 1 {
		t.Fatalf("Output.Len() = %d, want 1 (single literal mod_opt)", plan.Output.Len())
	}
	if _, err := plan.Input.At(0); err != nil {
		t.Fatalf("Input.At(0): %v", err)
	}
}

func TestBuildSkipsUnparsableOptionalOperator(t *testing.T) {
	doc := &Document{
		Cmd: "echo hi",
		Input: []OperatorSpec{
			// "range" with no arguments is a genuine domain-grammar parse
			// error, not a fallback-to-string bare literal.
			{ModName: "drop-prob", ModOpts: []interface{}{"range"}, Optional: true},
		},
	}
	plan, err := Build(doc, transform.Global())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Falls back to a "none" singleton domain, giving the operator generator
	// exactly one instance.
	if plan.Input.Len() != 1 {
		t.Fatalf("Input.Len() = %d, want 1", plan.Input.Len())
	}
}

func TestBuildFailsOnUnparsableRequiredOperator(t *testing.T) {
	doc := &Document{
		Cmd: "echo hi",
		Input: []OperatorSpec{
			{ModName: "drop-prob", ModOpts: []interface{}{"range"}},
		},
	}
	if _, err := Build(doc, transform.Global()); err == nil {
		t.Fatal("expected error for non-optional operator with unparsable mod_opt")
	}
}

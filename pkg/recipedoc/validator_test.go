package recipedoc

import (
	"testing"

	_ "github.com/jhkim/fragscapy-go/pkg/transform/catalog"
)

func validDoc() *Document {
	return &Document{
		Cmd: "echo hi",
		NFRules: []NFRuleSpec{
			{Host: "10.0.0.1", IPv4: true, OutputChain: true, QNum: 1000},
		},
		Input: []OperatorSpec{
			{ModName: "drop-prob", ModOpts: []interface{}{"0.5"}},
		},
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(validDoc()); err != nil {
		t.Fatalf("Validate: %v, errors=%v", err, v.Errors)
	}
}

func TestValidateRequiresCmd(t *testing.T) {
	doc := validDoc()
	doc.Cmd = ""
	v := NewValidator()
	if err := v.Validate(doc); err == nil {
		t.Fatal("expected error for empty cmd")
	}
}

func TestValidateRequiresChainDirection(t *testing.T) {
	doc := validDoc()
	doc.NFRules[0].OutputChain = false
	doc.NFRules[0].InputChain = false
	v := NewValidator()
	if err := v.Validate(doc); err == nil {
		t.Fatal("expected error for nfrule with no chain direction")
	}
}

func TestValidateRequiresFamily(t *testing.T) {
	doc := validDoc()
	doc.NFRules[0].IPv4 = false
	v := NewValidator()
	if err := v.Validate(doc); err == nil {
		t.Fatal("expected error for nfrule with no family")
	}
}

func TestValidateRejectsOddQNum(t *testing.T) {
	doc := validDoc()
	doc.NFRules[0].QNum = 1001
	v := NewValidator()
	if err := v.Validate(doc); err == nil {
		t.Fatal("expected error for odd qnum")
	}
}

func TestValidateWarnsOnEmptyHost(t *testing.T) {
	doc := validDoc()
	doc.NFRules[0].Host = ""
	v := NewValidator()
	if err := v.Validate(doc); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(v.Warnings) == 0 {
		t.Fatal("expected a warning for empty host")
	}
}

func TestValidateRejectsUnknownOperator(t *testing.T) {
	doc := validDoc()
	doc.Input = []OperatorSpec{{ModName: "not-a-real-operator"}}
	v := NewValidator()
	if err := v.Validate(doc); err == nil {
		t.Fatal("expected error for unknown operator name")
	}
}

func TestValidateRejectsUnsupportedProto(t *testing.T) {
	doc := validDoc()
	doc.NFRules[0].Proto = "icmp"
	v := NewValidator()
	if err := v.Validate(doc); err == nil {
		t.Fatal("expected error for unsupported proto")
	}
}

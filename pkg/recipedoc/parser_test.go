package recipedoc

import "testing"

func TestParseSubstitutesVariables(t *testing.T) {
	p := New(map[string]string{"HOST": "10.0.0.5"})
	doc, err := p.Parse([]byte(`
cmd: "ping ${HOST}"
nfrules: []
input: []
output: []
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Cmd != "ping 10.0.0.5" {
		t.Fatalf("Cmd = %q, want %q", doc.Cmd, "ping 10.0.0.5")
	}
}

func TestParseSubstitutesFromEnv(t *testing.T) {
	t.Setenv("FRAGSCAPY_TEST_VAR", "envval")
	p := New(nil)
	doc, err := p.Parse([]byte(`cmd: "run $FRAGSCAPY_TEST_VAR"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Cmd != "run envval" {
		t.Fatalf("Cmd = %q, want %q", doc.Cmd, "run envval")
	}
}

func TestParseLeavesUnknownVariable(t *testing.T) {
	p := New(nil)
	doc, err := p.Parse([]byte(`cmd: "run ${NOT_SET_ANYWHERE}"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Cmd != "run ${NOT_SET_ANYWHERE}" {
		t.Fatalf("Cmd = %q, want token left unsubstituted", doc.Cmd)
	}
}

func TestParseFileMissing(t *testing.T) {
	p := New(nil)
	if _, err := p.ParseFile("/nonexistent/path/does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSetVariableOverridesEnv(t *testing.T) {
	t.Setenv("FRAGSCAPY_TEST_VAR2", "fromenv")
	p := New(nil)
	p.SetVariable("FRAGSCAPY_TEST_VAR2", "fromvar")
	doc, err := p.Parse([]byte(`cmd: "${FRAGSCAPY_TEST_VAR2}"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Cmd != "fromvar" {
		t.Fatalf("Cmd = %q, want Variables to take precedence over env", doc.Cmd)
	}
}

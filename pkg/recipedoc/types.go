// Package recipedoc parses and validates the Configuration document
// (spec.md §6): the `cmd`/`nfrules`/`input`/`output` YAML/JSON document
// that drives one run of the test driver.
package recipedoc

// Document is the raw, unvalidated shape of a Configuration document.
type Document struct {
	Cmd     string         `yaml:"cmd" json:"cmd"`
	NFRules []NFRuleSpec   `yaml:"nfrules" json:"nfrules"`
	Input   []OperatorSpec `yaml:"input" json:"input"`
	Output  []OperatorSpec `yaml:"output" json:"output"`
}

// NFRuleSpec is one entry of the `nfrules` array; field names are a
// superset of {host, host6, port, proto, output_chain, input_chain, ipv4,
// ipv6, qnum} per spec.md §6.
type NFRuleSpec struct {
	Host        string `yaml:"host" json:"host"`
	Host6       string `yaml:"host6" json:"host6"`
	Port        int    `yaml:"port" json:"port"`
	Proto       string `yaml:"proto" json:"proto"`
	OutputChain bool   `yaml:"output_chain" json:"output_chain"`
	InputChain  bool   `yaml:"input_chain" json:"input_chain"`
	IPv4        bool   `yaml:"ipv4" json:"ipv4"`
	IPv6        bool   `yaml:"ipv6" json:"ipv6"`
	QNum        int    `yaml:"qnum" json:"qnum"`
}

// OperatorSpec is one entry of the `input`/`output` arrays: an operator
// name plus its option-domain argument strings.
type OperatorSpec struct {
	ModName  string        `yaml:"mod_name" json:"mod_name"`
	ModOpts  []interface{} `yaml:"mod_opts" json:"mod_opts"`
	Optional bool          `yaml:"optional" json:"optional"`
}

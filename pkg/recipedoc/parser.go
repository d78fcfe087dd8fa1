package recipedoc

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// varPattern matches ${VAR} and $VAR, mirroring the teacher's scenario
// variable-substitution regex so recipe files can reference ${TARGET_HOST}
// the same way scenario files reference ${PROMETHEUS_URL}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Parser reads Configuration documents, substituting ${VAR}/$VAR tokens
// from its own Variables map (checked first) and then the environment.
type Parser struct {
	Variables map[string]string
}

// New constructs a Parser with optional seed variables.
func New(variables map[string]string) *Parser {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Parser{Variables: variables}
}

// ParseFile reads and parses path.
func (p *Parser) ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipedoc: read %s: %w", path, err)
	}
	return p.Parse(data)
}

// Parse parses raw YAML or JSON bytes (JSON is valid YAML) into a Document.
func (p *Parser) Parse(data []byte) (*Document, error) {
	substituted := p.substituteVariables(string(data))
	var doc Document
	if err := yaml.Unmarshal([]byte(substituted), &doc); err != nil {
		return nil, fmt.Errorf("recipedoc: parse: %w", err)
	}
	return &doc, nil
}

func (p *Parser) substituteVariables(content string) string {
	return varPattern.ReplaceAllStringFunc(content, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if val, ok := p.Variables[name]; ok {
			return val
		}
		if val := os.Getenv(name); val != "" {
			return val
		}
		return match
	})
}

// SetVariable sets one substitution variable.
func (p *Parser) SetVariable(key, value string) { p.Variables[key] = value }

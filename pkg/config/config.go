// Package config loads the framework-level configuration document: logging
// and execution defaults plus the queue rules to install, as opposed to the
// per-run recipe document handled by pkg/recipedoc.
package config

import (
	"fmt"
	"os"

	"github.com/jhkim/fragscapy-go/pkg/nfrule"
	"gopkg.in/yaml.v3"
)

// Config is the root framework configuration document.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Execution ExecutionConfig `yaml:"execution"`
	Queues    []QueueConfig   `yaml:"queues"`
}

// FrameworkConfig controls ambient logging.
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ExecutionConfig controls driver-level defaults.
type ExecutionConfig struct {
	DefaultRepeat int `yaml:"default_repeat"`
}

// QueueConfig is one entry of the `queues` array, a friendlier surface over
// nfrule.Rule (chain/family as string lists rather than a bitmask).
type QueueConfig struct {
	Name   string   `yaml:"name"`
	QNum   int      `yaml:"qnum"`
	Chain  []string `yaml:"chain"`  // "ingress", "egress"
	Family []string `yaml:"family"` // "v4", "v6"
	Proto  string   `yaml:"proto"`
	Host   string   `yaml:"host"`
	Host6  string   `yaml:"host6"`
	Port   int      `yaml:"port"`
}

// Rule converts q into an nfrule.Rule.
func (q QueueConfig) Rule() nfrule.Rule {
	var chain nfrule.Chain
	for _, c := range q.Chain {
		switch c {
		case "ingress":
			chain |= nfrule.ChainIngress
		case "egress":
			chain |= nfrule.ChainEgress
		}
	}
	var fam nfrule.Family
	for _, f := range q.Family {
		switch f {
		case "v4":
			fam |= nfrule.FamilyV4
		case "v6":
			fam |= nfrule.FamilyV6
		}
	}
	return nfrule.Rule{
		Chain: chain,
		Fam:   fam,
		Proto: q.Proto,
		Host:  q.Host,
		Host6: q.Host6,
		Port:  q.Port,
		QNum:  q.QNum,
	}
}

// Error reports a structural configuration problem, precise to the
// offending YAML/JSON path, per spec.md §7's Configuration error taxonomy.
type Error struct {
	Path string
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("config: %s: %s", e.Path, e.Msg) }

// DefaultConfig returns the zero-file configuration.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Execution: ExecutionConfig{
			DefaultRepeat: 100,
		},
	}
}

// Load reads path, seeding from DefaultConfig, applying os.ExpandEnv over
// the raw bytes so queues[].host can reference ${TARGET_HOST}, then
// validating. A missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural invariants: a known log level/format, a
// positive default repeat, and a valid chain/family on every queue.
func (c *Config) Validate() error {
	switch c.Framework.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return &Error{Path: "framework.log_level", Msg: fmt.Sprintf("unknown level %q", c.Framework.LogLevel)}
	}
	switch c.Framework.LogFormat {
	case "", "text", "json":
	default:
		return &Error{Path: "framework.log_format", Msg: fmt.Sprintf("unknown format %q", c.Framework.LogFormat)}
	}
	if c.Execution.DefaultRepeat < 1 {
		return &Error{Path: "execution.default_repeat", Msg: "must be at least 1"}
	}
	for i, q := range c.Queues {
		if err := q.Rule().Validate(); err != nil {
			return &Error{Path: fmt.Sprintf("queues[%d]", i), Msg: err.Error()}
		}
	}
	return nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

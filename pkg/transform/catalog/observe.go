package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jhkim/fragscapy-go/pkg/packet"
	"github.com/jhkim/fragscapy-go/pkg/transform"
)

// Output is the writer observational operators print to; defaults to
// os.Stdout and is swappable for tests.
var Output io.Writer = os.Stdout

func init() {
	transform.Global().Register("echo",
		"echo <string>\n  Print a fixed string; packet list unchanged.",
		newEcho)
	transform.Global().Register("print",
		"print\n  Print each packet's index, length and delay; packet list unchanged.",
		newPrint)
	transform.Global().Register("summary",
		"summary\n  Print a one-line count summary; packet list unchanged.",
		newSummary)
}

type echo struct{ text string }

func newEcho(args []string) (transform.Transformation, error) {
	return &echo{text: strings.Join(args, " ")}, nil
}

func (e *echo) Name() string              { return "echo" }
func (e *echo) Usage() string             { return "echo <string>" }
func (e *echo) IsDeterministic() bool     { return true }
func (e *echo) Describe() []transform.Field {
	return []transform.Field{{Name: "text", Value: e.text}}
}

func (e *echo) Apply(pl *packet.List) (*packet.List, error) {
	fmt.Fprintln(Output, e.text)
	return pl, nil
}

type print struct{}

func newPrint(args []string) (transform.Transformation, error) {
	if err := requireArgs("print", args, 0); err != nil {
		return nil, &transform.OperatorError{Operator: "print", Err: err}
	}
	return &print{}, nil
}

func (p *print) Name() string              { return "print" }
func (p *print) Usage() string             { return "print" }
func (p *print) IsDeterministic() bool     { return true }
func (p *print) Describe() []transform.Field { return nil }

func (p *print) Apply(pl *packet.List) (*packet.List, error) {
	for i, pkt := range pl.Items() {
		fmt.Fprintf(Output, "[%d] %d bytes, delay=%.3fs\n", i, len(pkt.Bytes()), pkt.Delay())
	}
	return pl, nil
}

type summary struct{}

func newSummary(args []string) (transform.Transformation, error) {
	if err := requireArgs("summary", args, 0); err != nil {
		return nil, &transform.OperatorError{Operator: "summary", Err: err}
	}
	return &summary{}, nil
}

func (s *summary) Name() string              { return "summary" }
func (s *summary) Usage() string             { return "summary" }
func (s *summary) IsDeterministic() bool     { return true }
func (s *summary) Describe() []transform.Field { return nil }

func (s *summary) Apply(pl *packet.List) (*packet.List, error) {
	v4, v6, tcp := 0, 0, 0
	for _, pkt := range pl.Items() {
		if pkt.IsIPv4() {
			v4++
		}
		if pkt.IsIPv6() {
			v6++
		}
		if pkt.IsTCP() {
			tcp++
		}
	}
	fmt.Fprintf(Output, "summary: %d packets (%d ipv4, %d ipv6, %d tcp)\n", pl.Len(), v4, v6, tcp)
	return pl, nil
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jhkim/fragscapy-go/pkg/nfrule"
	"github.com/jhkim/fragscapy-go/pkg/recipedoc"
	"github.com/jhkim/fragscapy-go/pkg/telemetry"
	"github.com/jhkim/fragscapy-go/pkg/transform"
	"github.com/spf13/cobra"
)

var checkconfigCmd = &cobra.Command{
	Use:   "checkconfig FILE...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Validate configuration files, build recipes, and dry-run rule install/remove",
	RunE:  runCheckconfig,
}

var checkconfigModifFile string

func init() {
	checkconfigCmd.Flags().StringVar(&checkconfigModifFile, "modif-file", "", "modification log pattern (may embed {conf})")
}

func runCheckconfig(cmd *cobra.Command, args []string) error {
	log := newLogger()
	parser := recipedoc.New(nil)

	for confIdx, path := range args {
		doc, err := parser.ParseFile(path)
		if err != nil {
			return fmt.Errorf("checkconfig %s: %w", path, err)
		}
		plan, err := recipedoc.Build(doc, transform.Global())
		if err != nil {
			return fmt.Errorf("checkconfig %s: %w", path, err)
		}
		fmt.Printf("%s: ok (%d nfrule(s), %d input recipe(s), %d output recipe(s))\n",
			path, len(plan.Rules), plan.Input.Len(), plan.Output.Len())

		if checkconfigModifFile != "" {
			if err := writeFirstModif(confIdx, plan); err != nil {
				log.Warn("failed writing modification log", "error", err)
			}
		}

		if len(plan.Rules) == 0 {
			continue
		}
		installer, err := nfrule.NewInstaller()
		if err != nil {
			log.Warn("skipping rule dry-run: could not init iptables", "error", err)
			continue
		}
		installed := 0
		for _, r := range plan.Rules {
			if err := installer.Install(r); err != nil {
				log.Error("rule install failed during dry-run", "error", err)
				break
			}
			installed++
		}
		if err := installer.RemoveAll(); err != nil {
			log.Error("rule removal failed during dry-run", "error", err)
		}
		fmt.Printf("%s: rule install/remove dry-run ok (%d rule(s))\n", path, installed)
	}
	return nil
}

// writeFirstModif renders index 0's recipe pair to the modif file, per
// spec.md §6's record template, as a preview of what `start` would write.
func writeFirstModif(confIdx int, plan *recipedoc.Plan) error {
	in, err := plan.Input.At(0)
	if err != nil {
		return err
	}
	out, err := plan.Output.At(0)
	if err != nil {
		return err
	}

	path := strings.ReplaceAll(checkconfigModifFile, "{conf}", strconv.Itoa(confIdx))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("Modification n°0:\n")
	b.WriteString("> INPUT:\n")
	for _, line := range in.Describe() {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	b.WriteString("> OUTPUT:\n")
	for _, line := range out.Describe() {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	b.WriteString(strings.Repeat("=", 50) + "\n")
	_, err = f.WriteString(b.String())
	return err
}

func newLogger() *telemetry.Logger {
	level := telemetry.LogLevelInfo
	if verbose {
		level = telemetry.LogLevelDebug
	}
	return telemetry.NewLogger(telemetry.LoggerConfig{Level: level, Format: telemetry.LogFormatText, Output: os.Stdout})
}

// Command fragscapy is the network protocol conformance fuzzing harness: it
// installs queue rules that divert matching traffic to userland, applies a
// generated sequence of packet transformations, and drives a user command
// through the resulting Cartesian product of recipes.
package main

import (
	"os"

	_ "github.com/jhkim/fragscapy-go/pkg/transform/catalog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "fragscapy",
	Short:   "Network protocol conformance test harness",
	Long:    `fragscapy fuzzes packet fragmentation, reordering, and mangling against a live connection while driving a user-supplied test command.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (built-in defaults when unset or missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(checkconfigCmd)
	rootCmd.AddCommand(startCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

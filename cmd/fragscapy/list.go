package main

import (
	"fmt"

	"github.com/jhkim/fragscapy-go/pkg/transform"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "Print every registered operator name",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range transform.Global().Names() {
			fmt.Println(name)
		}
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage MOD...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Print the usage of each named operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			usage, err := transform.Global().Usage(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n%s\n\n", name, usage)
		}
		return nil
	},
}

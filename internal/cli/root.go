// Package cli implements the policypulse command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "policypulse",
	Short: "Compliance rule engine with autonomous remediation agents",
	Long:  "Scans business records against compliance rules, opens violations,\nand drives ReAct-style agents that fix, resolve, or escalate them.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config YAML (default ~/.policypulse/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cli

import (
	"github.com/spf13/cobra"
)

var remediateSeverity string

func init() {
	rootCmd.AddCommand(remediateCmd)
	remediateCmd.Flags().StringVar(&remediateSeverity, "severity", "", "Batch severity filter (critical/high/medium/low)")
}

var remediateCmd = &cobra.Command{
	Use:   "remediate [violation-id]",
	Short: "Run the autonomous remediation agent",
	Long:  "With a violation ID, runs the ReAct agent on that one violation.\nWithout one, remediates a batch of open violations oldest-first,\noptionally filtered by severity.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRemediate,
}

func runRemediate(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if len(args) == 1 {
		state, err := app.agent.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(state)
	}

	batch, err := app.agent.RunBatch(cmd.Context(), remediateSeverity)
	if err != nil {
		return err
	}
	return printJSON(batch)
}

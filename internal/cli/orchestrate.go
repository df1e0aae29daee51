package cli

import (
	"github.com/spf13/cobra"
)

var orchestrateSeverity string

func init() {
	rootCmd.AddCommand(orchestrateCmd)
	orchestrateCmd.Flags().StringVar(&orchestrateSeverity, "severity", "", "Batch severity filter (critical/high/medium/low)")
}

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate [violation-id]",
	Short: "Route violations through domain specialist agents",
	Long:  "Classifies each violation into a compliance domain (security, privacy,\nvendor, operations) and hands it to that domain's specialist playbook.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOrchestrate,
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if len(args) == 1 {
		result, err := app.orchestrator.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	batch, err := app.orchestrator.RunBatch(cmd.Context(), orchestrateSeverity)
	if err != nil {
		return err
	}
	return printJSON(batch)
}

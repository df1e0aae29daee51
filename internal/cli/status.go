package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show multi-agent system status",
	Long:  "Reports the registered agents, violation totals by status, action\ncounts from the agent log, and the most recent agent activity.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	status, err := app.orchestrator.Status(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(status)
}

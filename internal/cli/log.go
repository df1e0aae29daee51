package cli

import (
	"github.com/spf13/cobra"
)

var logLines int

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 20, "Number of recent entries to show")
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent agent log entries",
	Long:  "Prints the most recent entries from the agent action log, newest first.",
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	entries, err := app.store.LogEntries(cmd.Context(), logLines)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

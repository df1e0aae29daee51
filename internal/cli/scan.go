package cli

import (
	"github.com/spf13/cobra"
)

var scanHistory int

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanHistory, "history", 0, "Show the last N scan runs instead of scanning")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a compliance scan",
	Long:  "Evaluates every active rule against every record and opens a violation\nfor each failure. Already-open rule/record pairs are skipped.",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if scanHistory > 0 {
		runs, err := app.store.ScanRuns(cmd.Context(), scanHistory)
		if err != nil {
			return err
		}
		return printJSON(runs)
	}

	result, err := app.scan.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(result)
}

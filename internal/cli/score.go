package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scoreCmd)
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Show the current compliance score",
	Long:  "Prints the 0-100 compliance score with the open violation breakdown\nby severity. 100.0 means no open violations.",
	RunE:  runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	breakdown, err := app.runner.GetComplianceScore(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(breakdown)
}

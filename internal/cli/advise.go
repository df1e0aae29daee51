package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(adviseCmd)
}

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Get policy recommendations from violation history",
	Long:  "Reviews the last 30 days of violations and the active rule set, then\nrecommends severity upgrades, repeat-offender reviews, coverage gap\nfixes, and new rules worth adopting.",
	RunE:  runAdvise,
}

func runAdvise(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.advisor.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(report)
}

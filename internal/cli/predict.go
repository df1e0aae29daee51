package cli

import (
	"github.com/spf13/cobra"

	"github.com/policypulse/policypulse/internal/predict"
)

var (
	predictRecordType string
	predictDepartment string
	predictMinRisk    int
)

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predictRecordType, "record-type", "", "Limit predictions to one record type")
	predictCmd.Flags().StringVar(&predictDepartment, "department", "", "Limit predictions to one department")
	predictCmd.Flags().IntVar(&predictMinRisk, "min-risk", 0, "Minimum risk score to report (default 2)")
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict likely violations before they happen",
	Long:  "Analyzes current record data against active rules and flags records\nthat are trending toward a violation: missing fields, imminent expiries,\nthreshold breaches, and spreading violation patterns.",
	RunE:  runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.predictor.Run(cmd.Context(), predict.Options{
		RecordType:   predictRecordType,
		Department:   predictDepartment,
		MinRiskScore: predictMinRisk,
	})
	if err != nil {
		return err
	}
	return printJSON(report)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/policypulse/policypulse/internal/seed"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo rule set and records",
	Long:  "Inserts 10 compliance rules and 20 business records into the database.\nSafe to re-run: rules and records that already exist are skipped.",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rules, records, err := seed.Apply(cmd.Context(), app.store)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d rules and %d records\n", rules, records)
	return nil
}

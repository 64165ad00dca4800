package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evercare/careshift/pkg/core/services"
)

// SweepCmd creates the sweep command
func SweepCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire due shift offers and advance their cascades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ExpireDueOffers(app.Ctx, app.Database, app.Engine, app.Logger, time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Sweep complete!\n\n")
			fmt.Printf("Advanced: %d\n", len(result.Advanced))
			fmt.Printf("Skipped:  %d\n", len(result.Skipped))
			fmt.Printf("Failed:   %d\n\n", len(result.Failed))

			for _, id := range result.Failed {
				fmt.Printf("  ✗ %s\n", id)
			}

			return nil
		},
	}
}

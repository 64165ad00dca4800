package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/evercare/careshift/pkg/core/services"
)

// DefineShiftsCmd creates the defineShifts command
func DefineShiftsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "defineShifts <weeks>",
		Short: "Expand the configured shift templates over the coming weeks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weeks, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("weeks must be a number: %w", err)
			}
			if weeks < 1 {
				return fmt.Errorf("weeks must be at least 1")
			}

			from := time.Now().Truncate(24 * time.Hour)
			until := from.AddDate(0, 0, weeks*7)

			result, err := services.DefineShifts(app.Ctx, app.Database, app.Logger, app.Cfg.ShiftTemplates, from, until)
			if err != nil {
				return err
			}

			// Display results
			fmt.Printf("\n✓ Shifts created successfully!\n\n")
			fmt.Printf("Created: %d\n", len(result.Created))
			fmt.Printf("Skipped: %d (already defined)\n\n", result.Skipped)

			fmt.Printf("New Shifts:\n")
			for i, shift := range result.Created {
				fmt.Printf("  %2d. %s  %s  %s-%s\n", i+1, shift.Date, shift.ElderName, shift.StartTime, shift.EndTime)
			}
			fmt.Println()

			return nil
		},
	}
}

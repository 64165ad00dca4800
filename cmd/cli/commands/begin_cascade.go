package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evercare/careshift/pkg/core/services"
)

// BeginCascadeCmd creates the beginCascade command
func BeginCascadeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "beginCascade <shift_id>",
		Short: "Rank caregivers for an open shift and offer it to the first candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.BeginCascade(app.Ctx, app.Database, app.Database, app.Engine, app.Logger, args[0])
			if err != nil {
				return err
			}

			// Display results
			fmt.Printf("\n✓ Cascade started!\n\n")
			fmt.Printf("Shift:   %s\n", result.Shift.ID)
			fmt.Printf("Elder:   %s\n", result.Shift.ElderName)
			fmt.Printf("Date:    %s\n", result.Shift.Date)
			fmt.Printf("Status:  %s\n\n", result.Shift.Status)

			fmt.Printf("Ranked Candidates:\n")
			for i, candidate := range result.Candidates {
				marker := "  "
				if i == 0 {
					marker = "→ "
				}
				fmt.Printf("%s%2d. %s (%s)\n", marker, i+1, candidate.CaregiverName, candidate.CaregiverID)
			}
			fmt.Println()

			return nil
		},
	}
}

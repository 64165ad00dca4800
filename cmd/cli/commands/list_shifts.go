package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/db"
)

// ListShiftsCmd creates the listShifts command
func ListShiftsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listShifts <group_id>",
		Short: "View the shifts for a care group and their cascade state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID := args[0]

			app.Logger.Debug("listShifts command", zap.String("groupId", groupID))

			shifts, err := app.Database.ListShifts(app.Ctx, groupID)
			if err != nil {
				return err
			}

			// ANSI color codes
			const (
				colorReset  = "\033[0m"
				colorGreen  = "\033[32m"
				colorYellow = "\033[33m"
				colorDim    = "\033[2m"
			)

			fmt.Printf("\nShifts for group %s (%d total)\n\n", groupID, len(shifts))

			nameColWidth := 12
			for _, shift := range shifts {
				if len(shift.ElderName)+2 > nameColWidth {
					nameColWidth = len(shift.ElderName) + 2
				}
			}

			fmt.Printf("%-12s%-*s%-14s%-12s%s\n", "Date", nameColWidth, "Elder", "Time", "Status", "Caregiver")
			fmt.Println(strings.Repeat("-", 12+nameColWidth+14+12+24))

			for _, shift := range shifts {
				fmt.Printf("%-12s%-*s%-14s",
					shift.Date,
					nameColWidth, shift.ElderName,
					shift.StartTime+"-"+shift.EndTime,
				)

				switch shift.Status {
				case db.ShiftScheduled:
					fmt.Printf("%s%-12s%s", colorGreen, shift.Status, colorReset)
				case db.ShiftOffered:
					fmt.Printf("%s%-12s%s", colorYellow, shift.Status, colorReset)
				case db.ShiftCancelled:
					fmt.Printf("%s%-12s%s", colorDim, shift.Status, colorReset)
				default:
					fmt.Printf("%-12s", shift.Status)
				}

				switch {
				case shift.CaregiverName != "":
					fmt.Print(shift.CaregiverName)
				case shift.Status == db.ShiftOffered && shift.Cascade != nil:
					if candidate := shift.Cascade.CurrentCandidate(); candidate != nil {
						fmt.Printf("%soffered to %s%s", colorDim, candidate.CaregiverName, colorReset)
					}
				}
				fmt.Println()
			}
			fmt.Println()

			return nil
		},
	}
}

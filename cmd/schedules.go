package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List schedules assigned to you in the selected organization",
	Args:  cobra.NoArgs,
	RunE:  runSchedules,
}

func runSchedules(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a.requireAuth()
	a.requireOrg()

	employeeID := a.employeeID()
	if employeeID == "" {
		fmt.Fprintln(os.Stderr, "No employee record for this organization. Run: fieldtrack org select <orgId>")
		os.Exit(1)
	}

	schedules, err := a.client.LoadSchedules(ctx, employeeID, a.selection.Selected().ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load schedules: %v\n", err)
		os.Exit(1)
	}

	if len(schedules) == 0 {
		fmt.Println("No schedules assigned.")
		return nil
	}

	for _, s := range schedules {
		fmt.Printf("%s  %s\n", s.ID, s.Name)
		fmt.Printf("    Created: %s  Depart: %s  From: %s\n",
			s.CreatedAt.Format("2006-01-02"),
			s.DepartTime.Format("2006-01-02 15:04"),
			s.DepartAddress)
	}
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:   "locations [userId]",
	Short: "Show reported location history for a user",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLocations,
}

func runLocations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a.requireAuth()

	userID := a.session.User().ID
	if len(args) == 1 {
		userID = args[0]
	}

	records, err := a.client.UserLocations(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load locations: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No location reports found.")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %.6f,%.6f  schedule %s\n", r.CreatedAt, r.Latitude, r.Longitude, r.ScheduleID)
	}
	return nil
}

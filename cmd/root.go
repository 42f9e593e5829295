package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fieldtrack",
	Short: "AutoSched field client: schedules, job orders and location reporting",
	Long: `fieldtrack is the AutoSched client for field workers. It signs in to the
scheduling API, browses assigned schedules and their job orders, and
periodically reports this device's GPS position while a schedule is being
worked. Local state lives in ~/.fieldtrack/.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(settingsCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autosched/fieldtrack/internal/device"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Local client settings",
}

var settingsResetPermsCmd = &cobra.Command{
	Use:   "reset-permissions",
	Short: "Forget cached location permission decisions",
	Long: `Clears the cached location permission grants, including a sticky
denial, so the next tracking start asks again.`,
	Args: cobra.NoArgs,
	RunE: runSettingsResetPerms,
}

func init() {
	settingsCmd.AddCommand(settingsResetPermsCmd)
}

func runSettingsResetPerms(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	perms := device.NewPermissions(a.store.RuntimeDir(), os.Stdin, os.Stderr, false)
	if err := perms.Reset(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println("Permission decisions cleared.")
	return nil
}

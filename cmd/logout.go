package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Best effort: the in-memory session is cleared even if the write
	// fails, and the failure is reported rather than swallowed.
	if err := a.session.Logout(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not clear stored session: %v\n", err)
	}

	fmt.Println("Logged out.")
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/autosched/fieldtrack/internal/tracking"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, organization and tracking status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if !a.session.Authenticated() || a.session.User() == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	user := a.session.User()
	fmt.Printf("Logged in as %s\n", user.Username)
	if exp, ok := a.session.TokenExpiry(); ok {
		if time.Now().After(exp) {
			fmt.Printf("  Session expired %s, log in again\n", exp.Format("2006-01-02 15:04"))
		} else {
			fmt.Printf("  Session valid until %s\n", exp.Format("2006-01-02 15:04"))
		}
	}

	if org := a.selection.Selected(); org != nil {
		fmt.Printf("Organization: %s (%s)\n", org.Name, org.ID)
		if emp := a.selection.Employee(); emp != nil {
			fmt.Printf("  Employee: %s (%s)\n", emp.Name, emp.ID)
		} else {
			fmt.Println("  Employee: not resolved, re-select the organization")
		}
	} else {
		fmt.Println("Organization: none selected")
	}

	// Reflect the OS-level subscription state without starting anything,
	// so a subscription that survived a restart is reported correctly.
	dev := a.newDevice(false)
	tracker := tracking.New(dev, noopNotifier{}, tracking.APISink{Client: a.client}, tracking.Identity{}, a.trackingInterval())
	running, err := tracker.SyncState(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not query tracking state: %v\n", err)
		return nil
	}
	if running {
		fmt.Println("Tracking: active")
	} else {
		fmt.Println("Tracking: not active")
	}
	return nil
}

// noopNotifier is used on read-only paths that must not emit tray
// notifications.
type noopNotifier struct{}

func (noopNotifier) Notify(title, body string) error { return nil }

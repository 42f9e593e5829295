package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/autosched/fieldtrack/internal/device"
	"github.com/autosched/fieldtrack/internal/tracking"
)

var trackYes bool

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Report this device's location while working a schedule",
}

var trackStartCmd = &cobra.Command{
	Use:   "start <scheduleId>",
	Short: "Start location tracking for a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrackStart,
}

var trackStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop location tracking",
	Args:  cobra.NoArgs,
	RunE:  runTrackStop,
}

var trackStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether tracking is running",
	Args:  cobra.NoArgs,
	RunE:  runTrackStatus,
}

func init() {
	trackStartCmd.Flags().BoolVar(&trackYes, "yes", false, "Skip the confirmation prompt")
	trackStopCmd.Flags().BoolVar(&trackYes, "yes", false, "Skip the confirmation prompt")
	trackCmd.AddCommand(trackStartCmd)
	trackCmd.AddCommand(trackStopCmd)
	trackCmd.AddCommand(trackStatusCmd)
}

// confirm asks a yes/no question on the terminal, the CLI stand-in for the
// start/stop confirmation dialog.
func confirm(question string) bool {
	if trackYes {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runTrackStart(cmd *cobra.Command, args []string) error {
	scheduleID := args[0]
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a.requireAuth()
	a.requireOrg()

	dev := a.newDevice(true)
	tracker := a.newTracker(dev, scheduleID)

	// Reflect a subscription that survived a previous run instead of
	// starting a duplicate.
	running, err := tracker.SyncState(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if running {
		fmt.Fprintln(os.Stderr, "Tracking is already running. Run: fieldtrack track stop")
		os.Exit(1)
	}

	if !confirm("Your location will be periodically shared with your organization while you work this schedule. Start tracking?") {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := tracker.Start(ctx); err != nil {
		switch {
		case errors.Is(err, tracking.ErrForegroundDenied):
			fmt.Fprintln(os.Stderr, "Permission denied: location permission is required for tracking.")
		case errors.Is(err, tracking.ErrBackgroundDenied):
			fmt.Fprintln(os.Stderr, "Background location access is required to track while unattended.")
			fmt.Fprintln(os.Stderr, "Grant it again with: fieldtrack settings reset-permissions")
		default:
			fmt.Fprintf(os.Stderr, "Unable to start location tracking: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Tracking schedule %s every %s. Press Ctrl-C to leave (tracking stops).\n",
		scheduleID, a.trackingInterval())

	runAgent(ctx, tracker, dev)
	return nil
}

// runAgent keeps the tracking process alive until it is interrupted or an
// external `track stop` removes the subscription record. Interruption runs
// the teardown path: the foreground ticker is always cleared and the
// subscription is stopped if the device still reports it running.
func runAgent(ctx context.Context, tracker *tracking.Tracker, dev *device.Device) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(os.Stderr, "\nLeaving schedule, stopping tracking...")
			tracker.Teardown(context.Background())
			tracker.Wait()
			return
		case <-poll.C:
			running, err := dev.HasStartedUpdates(ctx, tracking.TaskName)
			if err != nil {
				continue
			}
			if !running {
				// Stopped externally; the stopping process already sent
				// the notification.
				fmt.Fprintln(os.Stderr, "Tracking stopped.")
				tracker.Teardown(context.Background())
				tracker.Wait()
				return
			}
		}
	}
}

func runTrackStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	dev := a.newDevice(false)
	tracker := a.newTracker(dev, "")

	running, err := tracker.SyncState(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if !running {
		fmt.Println("Tracking is not running.")
		return nil
	}

	if !confirm("Your location will no longer be shared with your organization. Stop tracking?") {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := tracker.Stop(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println("Tracking stopped.")
	return nil
}

func runTrackStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	dev := a.newDevice(false)
	tracker := a.newTracker(dev, "")

	running, err := tracker.SyncState(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if running {
		fmt.Println("Tracking: active")
	} else {
		fmt.Println("Tracking: not active")
	}
	return nil
}

// newTracker wires a Tracker for the current identity. The sample sink is
// the remote API, optionally wrapped in the configured coalescing window.
func (a *app) newTracker(dev *device.Device, scheduleID string) *tracking.Tracker {
	ident := tracking.Identity{ScheduleID: scheduleID}
	if user := a.session.User(); user != nil {
		ident.UserID = user.ID
	}
	if org := a.selection.Selected(); org != nil {
		ident.OrgID = org.ID
	}

	var sink tracking.Sink = tracking.APISink{Client: a.client}
	if a.cfg.Tracking.CoalesceSeconds > 0 {
		sink = &tracking.CoalescingSink{
			Next:   sink,
			Window: time.Duration(a.cfg.Tracking.CoalesceSeconds) * time.Second,
		}
	}

	notifier := device.WriterNotifier{Out: os.Stderr}
	return tracking.New(dev, notifier, sink, ident, a.trackingInterval())
}

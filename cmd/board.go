package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autosched/fieldtrack/internal/api"
)

var (
	boardAllTasks bool
	boardExpand   []string
)

var boardCmd = &cobra.Command{
	Use:   "board <scheduleId>",
	Short: "Show the job-order board for a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().BoolVar(&boardAllTasks, "tasks", false, "Expand the task list of every job order")
	boardCmd.Flags().StringArrayVar(&boardExpand, "expand", nil, "Expand the task list of one job order (repeatable)")
}

var statusLabels = map[string]string{
	api.StatusTodo:        "To Do",
	api.StatusInProgress:  "In Progress",
	api.StatusCompleted:   "Completed",
	api.StatusUnscheduled: "Unscheduled",
}

func runBoard(cmd *cobra.Command, args []string) error {
	scheduleID := args[0]
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a.requireAuth()

	employeeID := a.employeeID()
	if employeeID == "" {
		fmt.Fprintln(os.Stderr, "No employee record cached. Run: fieldtrack org select <orgId>")
		os.Exit(1)
	}

	schedule, err := a.client.FindSchedule(ctx, scheduleID, employeeID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load schedule: %v\n", err)
		os.Exit(1)
	}

	expanded := make(map[string]bool, len(boardExpand))
	for _, id := range boardExpand {
		expanded[id] = true
	}

	fmt.Printf("%s\n", schedule.Name)
	fmt.Printf("Depart %s at %s\n\n", schedule.DepartAddress, schedule.DepartTime.Format("2006-01-02 15:04"))

	if len(schedule.JobOrders) == 0 {
		fmt.Println("No job orders assigned.")
		return nil
	}

	// Job orders arrive sorted by scheduledOrder; render in that order.
	for _, order := range schedule.JobOrders {
		label := statusLabels[order.Status]
		if label == "" {
			label = order.Status
		}
		fmt.Printf("Order #%s  [%s]\n", order.OrderNumber, label)
		fmt.Printf("  %s\n", order.Address)
		fmt.Printf("  Space: %g  Tasks: %d\n", order.SpaceRequired, len(order.Tasks))

		if boardAllTasks || expanded[order.ID] {
			for _, jt := range order.Tasks {
				fmt.Printf("    - %s (qty %d, %g %s)\n",
					jt.Task.Task, jt.Quantity, jt.Task.RequiredTimeValue, jt.Task.RequiredTimeUnit)
			}
		}
		fmt.Println()
	}
	return nil
}

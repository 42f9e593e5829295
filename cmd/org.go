package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autosched/fieldtrack/internal/orgs"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "List and select organizations",
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List organizations available to the current user",
	Args:  cobra.NoArgs,
	RunE:  runOrgList,
}

var orgSelectCmd = &cobra.Command{
	Use:   "select <orgId>",
	Short: "Select the organization to work under",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgSelect,
}

var orgClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the selected organization",
	Args:  cobra.NoArgs,
	RunE:  runOrgClear,
}

func init() {
	orgCmd.AddCommand(orgListCmd)
	orgCmd.AddCommand(orgSelectCmd)
	orgCmd.AddCommand(orgClearCmd)
}

func runOrgList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a.requireAuth()

	list, err := a.selection.Load(ctx, a.session.User().ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if len(list) == 0 {
		fmt.Println("No organizations found.")
		return nil
	}

	selected := ""
	if org := a.selection.Selected(); org != nil {
		selected = org.ID
	}
	for _, org := range list {
		marker := " "
		if org.ID == selected {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, org.ID, org.Name)
	}
	return nil
}

func runOrgSelect(cmd *cobra.Command, args []string) error {
	orgID := args[0]
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a.requireAuth()

	userID := a.session.User().ID
	list, err := a.selection.Load(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load organizations: %v\n", err)
		os.Exit(1)
	}

	for _, org := range list {
		if org.ID != orgID {
			continue
		}
		if err := a.selection.Select(ctx, userID, org); err != nil {
			if errors.Is(err, orgs.ErrEmployeeLookup) {
				// The selection is live; only the employee cache is
				// missing. Schedule commands will fail until it resolves.
				fmt.Fprintf(os.Stderr, "Warning: selected %q but %v\n", org.Name, err)
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Printf("Selected organization %q\n", org.Name)
		if emp := a.selection.Employee(); emp != nil {
			fmt.Printf("Working as employee %s (%s)\n", emp.Name, emp.ID)
		}
		return nil
	}

	fmt.Fprintf(os.Stderr, "No organization with id %q. Run: fieldtrack org list\n", orgID)
	os.Exit(1)
	return nil
}

func runOrgClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := a.selection.ClearSelected(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println("Organization selection cleared.")
	return nil
}

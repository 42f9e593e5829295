package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in to the AutoSched API",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := args[0]
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	password := loginPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "reading password:", err)
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if err := a.session.Login(ctx, username, password); err != nil {
		// Credential and network failures surface the same way; prior
		// session state is untouched.
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		os.Exit(1)
	}

	user := a.session.User()
	fmt.Printf("Logged in as %s\n", user.Username)
	if a.session.EmployeeID() != "" {
		fmt.Printf("Employee id: %s\n", a.session.EmployeeID())
	}
	return nil
}

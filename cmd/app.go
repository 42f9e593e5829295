package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/autosched/fieldtrack/internal/api"
	"github.com/autosched/fieldtrack/internal/config"
	"github.com/autosched/fieldtrack/internal/device"
	"github.com/autosched/fieldtrack/internal/orgs"
	"github.com/autosched/fieldtrack/internal/session"
	"github.com/autosched/fieldtrack/internal/store"
)

// app bundles the wired application state commands operate on. Everything
// is constructor-injected; Restore only rehydrates from local storage, so
// building an app never touches the network.
type app struct {
	cfg       config.Config
	store     *store.Store
	client    *api.Client
	session   *session.Session
	selection *orgs.Selection
}

// newApp loads config, opens the store and restores persisted session and
// selection state.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	base, err := store.BaseDir()
	if err != nil {
		return nil, err
	}
	st := store.New(base)

	// The client is rebuilt after Restore so it carries the persisted
	// session credential.
	probe := session.New(st, nil)
	if err := probe.Restore(); err != nil {
		return nil, err
	}

	client := api.NewClient(ctx, cfg.API.BaseURL, probe.Token())

	sess := session.New(st, client)
	if err := sess.Restore(); err != nil {
		return nil, err
	}
	sel := orgs.New(st, client)
	if err := sel.Restore(); err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: st, client: client, session: sess, selection: sel}, nil
}

// requireAuth exits with a hint when no user is logged in.
func (a *app) requireAuth() {
	if !a.session.Authenticated() || a.session.User() == nil {
		fmt.Fprintln(os.Stderr, "Not logged in. Run: fieldtrack login <username>")
		os.Exit(1)
	}
}

// requireOrg exits with a hint when no organization is selected.
func (a *app) requireOrg() {
	if a.selection.Selected() == nil {
		fmt.Fprintln(os.Stderr, "No organization selected. Run: fieldtrack org select <orgId>")
		os.Exit(1)
	}
}

// employeeID resolves the employee identity to act as: the cached employee
// for the selected organization when present, otherwise the id delivered
// at login.
func (a *app) employeeID() string {
	if emp := a.selection.Employee(); emp != nil {
		return emp.ID
	}
	return a.session.EmployeeID()
}

// trackingInterval returns the configured sampling period.
func (a *app) trackingInterval() time.Duration {
	return time.Duration(a.cfg.Tracking.IntervalMinutes) * time.Minute
}

// newDevice wires the configured location source with the permission cache
// and the runtime directory.
func (a *app) newDevice(prompt bool) *device.Device {
	var source device.Source
	switch a.cfg.Tracking.Provider {
	case "feed":
		source = device.NewFeed(a.cfg.Tracking.FeedURL)
	default:
		source = device.NewGPSD(a.cfg.Tracking.GPSDAddr)
	}
	perms := device.NewPermissions(a.store.RuntimeDir(), os.Stdin, os.Stderr, prompt)
	return device.New(source, perms, a.store.RuntimeDir())
}

package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/autosched/fieldtrack/internal/api"
	"github.com/autosched/fieldtrack/internal/store"
)

// ErrEmployeeLookup marks a selection whose employee resolution failed. The
// selection itself stays live; callers decide whether to surface or retry.
var ErrEmployeeLookup = errors.New("employee lookup failed")

// API is the slice of the remote client the selection layer depends on.
type API interface {
	LoadOrganizations(ctx context.Context, userID string) ([]api.Organization, error)
	FindEmployee(ctx context.Context, userID, orgID string) (api.Employee, error)
}

// Selection holds the organizations available to the current user and the
// currently selected one, plus the employee record scoping the user to it.
type Selection struct {
	store  *store.Store
	client API

	organizations []api.Organization
	selected      *api.Organization
	employee      *api.Employee
}

// New creates a Selection backed by st.
func New(st *store.Store, client API) *Selection {
	return &Selection{store: st, client: client}
}

// Restore rehydrates the persisted selection and cached employee. Local
// storage only; no network.
func (s *Selection) Restore() error {
	st, err := s.store.Load()
	if err != nil {
		return err
	}
	s.selected = st.SelectedOrg
	s.employee = st.Employee
	return nil
}

// Load fetches the organizations available to userID. An invalid payload
// degrades to an empty list; the error is still returned so the caller can
// choose to surface it.
func (s *Selection) Load(ctx context.Context, userID string) ([]api.Organization, error) {
	list, err := s.client.LoadOrganizations(ctx, userID)
	if err != nil {
		s.organizations = []api.Organization{}
		return s.organizations, fmt.Errorf("loading organizations: %w", err)
	}
	if list == nil {
		list = []api.Organization{}
	}
	s.organizations = list
	return list, nil
}

// Organizations returns the most recently loaded list.
func (s *Selection) Organizations() []api.Organization { return s.organizations }

// Select makes org the current selection. The selection is applied and
// persisted immediately; the employee record for (user, org) is then
// resolved and cached. A failed lookup returns ErrEmployeeLookup with the
// selection left live and no employee cached for it.
func (s *Selection) Select(ctx context.Context, userID string, org api.Organization) error {
	s.selected = &org
	if err := s.store.Update(func(st *store.State) {
		st.SelectedOrg = &org
	}); err != nil {
		return err
	}

	emp, err := s.client.FindEmployee(ctx, userID, org.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmployeeLookup, err)
	}

	s.employee = &emp
	return s.store.Update(func(st *store.State) {
		st.Employee = &emp
	})
}

// ClearSelected drops the in-memory selection and the persisted org only.
// The cached employee record is left in place until the next selection
// overwrites it.
func (s *Selection) ClearSelected() error {
	s.selected = nil
	return s.store.Update(func(st *store.State) {
		st.SelectedOrg = nil
	})
}

// Selected returns the current selection, nil when none.
func (s *Selection) Selected() *api.Organization { return s.selected }

// Employee returns the cached employee record, nil when none has been
// resolved. It may be stale relative to the selection if the last lookup
// failed.
func (s *Selection) Employee() *api.Employee { return s.employee }

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/autosched/fieldtrack/internal/api"
	"github.com/autosched/fieldtrack/internal/store"
)

// API is the slice of the remote client the session layer depends on.
type API interface {
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
}

// Session tracks whether a user is authenticated and caches the profile.
// It is constructor-injected; callers decide which failures to surface.
type Session struct {
	store  *store.Store
	client API

	authenticated bool
	user          *api.User
	token         string
	employeeID    string
}

// New creates a Session backed by st. Call Restore to rehydrate persisted
// state before first use.
func New(st *store.Store, client API) *Session {
	return &Session{store: st, client: client}
}

// Restore rehydrates in-memory state from local storage only. It performs
// no network calls and is safe to call repeatedly.
func (s *Session) Restore() error {
	st, err := s.store.Load()
	if err != nil {
		return err
	}
	s.authenticated = st.Authenticated
	s.user = st.User
	s.token = st.Token
	s.employeeID = st.EmployeeID
	return nil
}

// Login authenticates against the remote API. On success the session record
// is persisted as one atomic write and in-memory state is updated. On any
// failure prior state is left untouched.
func (s *Session) Login(ctx context.Context, username, password string) error {
	resp, err := s.client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	user := resp.User
	err = s.store.Update(func(st *store.State) {
		st.Authenticated = true
		st.User = &user
		st.Token = resp.SessionID
		if resp.EmployeeID != "" {
			st.EmployeeID = resp.EmployeeID
		}
	})
	if err != nil {
		return err
	}

	s.authenticated = true
	s.user = &user
	s.token = resp.SessionID
	if resp.EmployeeID != "" {
		s.employeeID = resp.EmployeeID
	}
	return nil
}

// Logout clears the in-memory session and removes the persisted session
// fields. The organization selection and cached employee survive, matching
// the selection lifecycle (they are overwritten on the next selection).
func (s *Session) Logout() error {
	s.authenticated = false
	s.user = nil
	s.token = ""

	return s.store.Update(func(st *store.State) {
		st.Authenticated = false
		st.User = nil
		st.Token = ""
	})
}

// Authenticated reports whether a user is logged in.
func (s *Session) Authenticated() bool { return s.authenticated }

// User returns the cached profile, nil when unauthenticated.
func (s *Session) User() *api.User { return s.user }

// Token returns the current session credential.
func (s *Session) Token() string { return s.token }

// EmployeeID returns the employee id delivered at login, if any.
func (s *Session) EmployeeID() string { return s.employeeID }

// TokenExpiry inspects the session token client-side and returns its expiry
// claim. ok is false when the token is not a JWT or carries no expiry; the
// signature is deliberately not verified here.
func (s *Session) TokenExpiry() (time.Time, bool) {
	if s.token == "" {
		return time.Time{}, false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(s.token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

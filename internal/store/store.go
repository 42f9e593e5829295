package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/autosched/fieldtrack/internal/api"
)

// State is the full persisted client state. It is written as one atomic
// record so a crash mid-write can never leave Authenticated set with no
// user attached.
type State struct {
	Authenticated bool              `json:"authenticated"`
	User          *api.User         `json:"user"`
	Token         string            `json:"token"`
	EmployeeID    string            `json:"employee_id"`
	SelectedOrg   *api.Organization `json:"selected_org"`
	Employee      *api.Employee     `json:"employee"`
}

// Store persists State under a base directory.
type Store struct {
	base string
}

// BaseDir returns the root data directory (~/.fieldtrack).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".fieldtrack"), nil
}

// New creates a Store rooted at base.
func New(base string) *Store {
	return &Store{base: base}
}

func (s *Store) statePath() string {
	return filepath.Join(s.base, "state.json")
}

// RuntimeDir returns the directory for transient runtime records
// (permission grants, subscription liveness).
func (s *Store) RuntimeDir() string {
	return filepath.Join(s.base, "runtime")
}

// Load reads the persisted state. A missing file yields the zero State.
func (s *Store) Load() (State, error) {
	path := s.statePath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return State{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return st, nil
}

// Save atomically writes the state record.
func (s *Store) Save(st State) error {
	path := s.statePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// Update applies fn to the current state and writes the result back as one
// atomic record.
func (s *Store) Update(fn func(*State)) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	fn(&st)
	return s.Save(st)
}

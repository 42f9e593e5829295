package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Scope names a location permission scope.
type Scope string

const (
	// ScopeForeground covers location access while the client is running
	// interactively.
	ScopeForeground Scope = "foreground"
	// ScopeBackground covers location access while the agent runs
	// detached from a terminal session.
	ScopeBackground Scope = "background"
)

// Permissions manages location permission grants. A grant decision is asked
// interactively once and then cached on disk; a denial is sticky until
// Reset, the equivalent of flipping the setting back on in system settings.
type Permissions struct {
	dir    string
	in     *bufio.Reader
	out    io.Writer
	prompt bool
}

type grantFile struct {
	Foreground string `json:"foreground"` // "granted", "denied" or ""
	Background string `json:"background"`
}

// NewPermissions creates a Permissions store under dir. When prompt is
// false, undecided scopes are treated as denied instead of asking.
func NewPermissions(dir string, in io.Reader, out io.Writer, prompt bool) *Permissions {
	return &Permissions{dir: dir, in: bufio.NewReader(in), out: out, prompt: prompt}
}

func (p *Permissions) path() string {
	return filepath.Join(p.dir, "permissions.json")
}

func (p *Permissions) load() (grantFile, error) {
	data, err := os.ReadFile(p.path())
	if os.IsNotExist(err) {
		return grantFile{}, nil
	}
	if err != nil {
		return grantFile{}, fmt.Errorf("reading permission cache: %w", err)
	}
	var gf grantFile
	if err := json.Unmarshal(data, &gf); err != nil {
		// Corrupt cache: treat as undecided.
		return grantFile{}, nil
	}
	return gf, nil
}

func (p *Permissions) save(gf grantFile) error {
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return fmt.Errorf("creating runtime directory: %w", err)
	}
	data, err := json.MarshalIndent(gf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling permission cache: %w", err)
	}
	path := p.path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing permission cache: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving permission cache: %w", err)
	}
	return nil
}

func get(gf grantFile, scope Scope) string {
	if scope == ScopeBackground {
		return gf.Background
	}
	return gf.Foreground
}

func set(gf *grantFile, scope Scope, v string) {
	if scope == ScopeBackground {
		gf.Background = v
	} else {
		gf.Foreground = v
	}
}

// Granted reports the cached decision for scope without prompting.
func (p *Permissions) Granted(scope Scope) (bool, error) {
	gf, err := p.load()
	if err != nil {
		return false, err
	}
	return get(gf, scope) == "granted", nil
}

// Request returns the cached decision for scope, asking interactively when
// none has been made yet. The decision is persisted either way.
func (p *Permissions) Request(ctx context.Context, scope Scope) (bool, error) {
	gf, err := p.load()
	if err != nil {
		return false, err
	}
	switch get(gf, scope) {
	case "granted":
		return true, nil
	case "denied":
		return false, nil
	}

	granted := false
	if p.prompt {
		granted, err = p.ask(scope)
		if err != nil {
			return false, err
		}
	}

	decision := "denied"
	if granted {
		decision = "granted"
	}
	set(&gf, scope, decision)
	if err := p.save(gf); err != nil {
		return granted, err
	}
	return granted, nil
}

func (p *Permissions) ask(scope Scope) (bool, error) {
	switch scope {
	case ScopeBackground:
		fmt.Fprint(p.out, "Allow fieldtrack to access location while running unattended? [y/N] ")
	default:
		fmt.Fprint(p.out, "Allow fieldtrack to access this device's location? [y/N] ")
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("reading permission response: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Reset clears all cached decisions so the next request prompts again.
func (p *Permissions) Reset() error {
	if err := os.Remove(p.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing permission cache: %w", err)
	}
	return nil
}

package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Fix is one position sample from a location source.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64 // meters, when the source reports it
	Time      time.Time
}

// Accuracy tiers, mirroring the platform location services this client
// replaces. Sources may ignore tiers they cannot influence.
type Accuracy int

const (
	AccuracyBalanced Accuracy = iota
	AccuracyHigh
	AccuracyBestForNavigation
)

// WatchOptions configures a continuous subscription.
type WatchOptions struct {
	// Interval is the time-based sampling period.
	Interval time.Duration
	// Accuracy is the requested accuracy tier.
	Accuracy Accuracy
	// DistanceFilter suppresses fixes that moved less than this many
	// meters. Zero disables it, making sampling purely time-driven.
	DistanceFilter float64
}

// Source produces raw position data. Implementations: gpsd (TCP JSON
// stream) and feed (websocket gateway).
type Source interface {
	// Current returns a single fresh fix.
	Current(ctx context.Context) (Fix, error)
	// Watch streams fixes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan Fix, error)
}

// Device wraps a Source with permission gating and named-subscription
// bookkeeping, giving the tracking lifecycle the same surface the mobile
// location service exposed: permission requests, a one-shot fix, and a
// continuous subscription keyed by task name whose liveness can be queried
// across process restarts.
type Device struct {
	source      Source
	permissions *Permissions
	runtimeDir  string

	cancel map[string]context.CancelFunc
}

// New creates a Device. runtimeDir holds subscription liveness records and
// the permission grant cache.
func New(source Source, permissions *Permissions, runtimeDir string) *Device {
	return &Device{
		source:      source,
		permissions: permissions,
		runtimeDir:  runtimeDir,
		cancel:      make(map[string]context.CancelFunc),
	}
}

// RequestForegroundPermission prompts for (or recalls) the foreground grant.
func (d *Device) RequestForegroundPermission(ctx context.Context) (bool, error) {
	return d.permissions.Request(ctx, ScopeForeground)
}

// RequestBackgroundPermission prompts for (or recalls) the background grant.
func (d *Device) RequestBackgroundPermission(ctx context.Context) (bool, error) {
	return d.permissions.Request(ctx, ScopeBackground)
}

// ForegroundPermission reports the foreground grant without prompting.
func (d *Device) ForegroundPermission(ctx context.Context) (bool, error) {
	return d.permissions.Granted(ScopeForeground)
}

// CurrentPosition returns a single fresh fix from the source.
func (d *Device) CurrentPosition(ctx context.Context) (Fix, error) {
	return d.source.Current(ctx)
}

// subscriptionRecord is the on-disk liveness marker for a named
// subscription. Its presence means the subscription is (or was, if the
// process died) running.
type subscriptionRecord struct {
	Task      string    `json:"task"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	PID       int       `json:"pid"`
}

func (d *Device) recordPath(task string) string {
	return filepath.Join(d.runtimeDir, "track-"+task+".json")
}

// StartUpdates begins a continuous subscription named task. Fixes are
// delivered on the returned channel once per opts.Interval; with a zero
// distance filter delivery is purely time-driven. The channel closes when
// the subscription stops.
func (d *Device) StartUpdates(ctx context.Context, task string, opts WatchOptions) (<-chan Fix, error) {
	if _, ok := d.cancel[task]; ok {
		return nil, fmt.Errorf("subscription %q already started", task)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	raw, err := d.source.Watch(watchCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting location updates: %w", err)
	}

	rec := subscriptionRecord{
		Task:      task,
		SessionID: uuid.NewString(),
		StartedAt: time.Now(),
		PID:       os.Getpid(),
	}
	if err := d.writeRecord(rec); err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Fix, 1)
	go d.sample(watchCtx, rec, raw, out, opts)
	d.cancel[task] = cancel
	return out, nil
}

// sample forwards the latest raw fix once per interval.
func (d *Device) sample(ctx context.Context, rec subscriptionRecord, raw <-chan Fix, out chan<- Fix, opts WatchOptions) {
	defer close(out)

	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var latest *Fix
	var lastSent *Fix
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-raw:
			if !ok {
				log.Printf("location source closed for task %q (session %s)", rec.Task, rec.SessionID)
				return
			}
			latest = &f
		case <-ticker.C:
			if latest == nil {
				continue
			}
			if opts.DistanceFilter > 0 && lastSent != nil &&
				haversineMeters(lastSent.Latitude, lastSent.Longitude, latest.Latitude, latest.Longitude) < opts.DistanceFilter {
				continue
			}
			select {
			case out <- *latest:
				lastSent = latest
			case <-ctx.Done():
				return
			}
		}
	}
}

// StopUpdates cancels the named subscription and removes its liveness
// record. A record left behind by a dead process is removed as well.
func (d *Device) StopUpdates(ctx context.Context, task string) error {
	if cancel, ok := d.cancel[task]; ok {
		cancel()
		delete(d.cancel, task)
	}
	if err := os.Remove(d.recordPath(task)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing subscription record: %w", err)
	}
	return nil
}

// HasStartedUpdates reports whether a subscription named task is recorded
// as running, including one started by a previous process.
func (d *Device) HasStartedUpdates(ctx context.Context, task string) (bool, error) {
	_, err := os.Stat(d.recordPath(task))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking subscription record: %w", err)
	}
	return true, nil
}

func (d *Device) writeRecord(rec subscriptionRecord) error {
	if err := os.MkdirAll(d.runtimeDir, 0o700); err != nil {
		return fmt.Errorf("creating runtime directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling subscription record: %w", err)
	}
	path := d.recordPath(rec.Task)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing subscription record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving subscription record: %w", err)
	}
	return nil
}

package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/autosched/fieldtrack/internal/api"
	"github.com/autosched/fieldtrack/internal/device"
)

// TaskName keys the continuous background subscription, so a subscription
// started by a previous process can be found and stopped.
const TaskName = "location-tracking"

// DefaultInterval is the sampling period for both the background
// subscription and the foreground fallback ticker.
const DefaultInterval = 5 * time.Minute

// State of the tracking lifecycle.
type State int

const (
	Idle State = iota
	RequestingPermission
	Active
	Stopping
	// Denied is entered when the foreground permission is refused. It is
	// absorbing until the permission cache is reset.
	Denied
)

func (s State) String() string {
	switch s {
	case RequestingPermission:
		return "requesting-permission"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Denied:
		return "denied"
	default:
		return "idle"
	}
}

// ErrForegroundDenied is returned when the foreground location permission
// is refused; no background permission is requested after it.
var ErrForegroundDenied = errors.New("location permission denied")

// ErrBackgroundDenied is returned when the background permission is refused
// after the foreground grant; the caller should point the user at the
// settings reset path. No subscription is started.
var ErrBackgroundDenied = errors.New("background location permission denied")

// ErrAlreadyActive is returned by Start when tracking is already running.
var ErrAlreadyActive = errors.New("tracking already active")

// Provider is the device location surface the lifecycle drives. Satisfied
// by *device.Device.
type Provider interface {
	RequestForegroundPermission(ctx context.Context) (bool, error)
	RequestBackgroundPermission(ctx context.Context) (bool, error)
	ForegroundPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context) (device.Fix, error)
	StartUpdates(ctx context.Context, task string, opts device.WatchOptions) (<-chan device.Fix, error)
	StopUpdates(ctx context.Context, task string) error
	HasStartedUpdates(ctx context.Context, task string) (bool, error)
}

// Identity tags outgoing samples with who is reporting and for what work.
type Identity struct {
	UserID     string
	ScheduleID string
	OrgID      string
}

// Tracker is the location tracking lifecycle: permission negotiation,
// a continuous background subscription plus an independent foreground
// ticker at the same interval, transmission of samples through one sink,
// and reconciliation of state across mounts and restarts. It is the single
// source of truth for whether sampling is running.
type Tracker struct {
	provider Provider
	notifier device.Notifier
	sink     Sink
	ident    Identity
	interval time.Duration

	mu         sync.Mutex
	state      State
	tickerStop chan struct{}
	wg         sync.WaitGroup
}

// New creates a Tracker. A zero interval uses DefaultInterval.
func New(provider Provider, notifier device.Notifier, sink Sink, ident Identity, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		provider: provider,
		notifier: notifier,
		sink:     sink,
		ident:    ident,
		interval: interval,
	}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether sampling is running.
func (t *Tracker) Active() bool { return t.State() == Active }

// Start walks the permission sequence and, when both grants are present,
// starts the background subscription and the foreground fallback ticker.
// Steps run strictly in order: foreground permission, background
// permission, start notification, subscription, ticker.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case Active, RequestingPermission, Stopping:
		// A second caller must not clobber a start or stop in flight.
		t.mu.Unlock()
		return ErrAlreadyActive
	}
	t.state = RequestingPermission
	t.mu.Unlock()

	granted, err := t.provider.RequestForegroundPermission(ctx)
	if err != nil {
		t.setState(Idle)
		return fmt.Errorf("requesting location permission: %w", err)
	}
	if !granted {
		t.setState(Denied)
		return ErrForegroundDenied
	}

	granted, err = t.provider.RequestBackgroundPermission(ctx)
	if err != nil {
		t.setState(Idle)
		return fmt.Errorf("requesting background permission: %w", err)
	}
	if !granted {
		t.setState(Idle)
		return ErrBackgroundDenied
	}

	if err := t.notifier.Notify("Location Tracking Started",
		"Your location is now being shared with your organization"); err != nil {
		log.Printf("start notification failed: %v", err)
	}

	fixes, err := t.provider.StartUpdates(ctx, TaskName, device.WatchOptions{
		Interval: t.interval,
		Accuracy: device.AccuracyBestForNavigation,
		// Zero distance filter: sampling is purely time-driven.
		DistanceFilter: 0,
	})
	if err != nil {
		t.setState(Idle)
		return fmt.Errorf("starting location updates: %w", err)
	}

	t.mu.Lock()
	t.tickerStop = make(chan struct{})
	stop := t.tickerStop
	t.state = Active
	t.mu.Unlock()

	t.wg.Add(2)
	go t.forwardUpdates(fixes)
	go t.runTicker(stop)
	return nil
}

// forwardUpdates transmits every fix delivered by the background
// subscription. It exits when the subscription channel closes.
func (t *Tracker) forwardUpdates(fixes <-chan device.Fix) {
	defer t.wg.Done()
	for f := range fixes {
		t.send(f, "background")
	}
}

// runTicker is the redundancy path: at the same interval it re-checks the
// foreground permission and pulls a fresh fix directly. Both paths feed the
// same sink, so within one interval window up to two transmissions can be
// produced for the same approximate position unless the sink coalesces.
func (t *Tracker) runTicker(stop <-chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx := context.Background()
			granted, err := t.provider.ForegroundPermission(ctx)
			if err != nil || !granted {
				if err != nil {
					log.Printf("foreground permission check failed: %v", err)
				}
				continue
			}
			fix, err := t.provider.CurrentPosition(ctx)
			if err != nil {
				log.Printf("foreground position fix failed: %v", err)
				continue
			}
			t.send(fix, "foreground")
		}
	}
}

// send transmits one sample. Failures are logged and the sample dropped;
// there is no retry and no local queue. A send in flight when tracking
// stops is allowed to complete.
func (t *Tracker) send(fix device.Fix, path string) {
	sample := api.LocationSample{
		UserID:     t.ident.UserID,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		ScheduleID: t.ident.ScheduleID,
		OrgID:      t.ident.OrgID,
	}
	if err := t.sink.Send(context.Background(), sample); err != nil {
		log.Printf("%s location send failed (sample dropped): %v", path, err)
	}
}

// Stop cancels the background subscription (best effort), stops the
// foreground ticker deterministically, emits the stop notification and
// reports Idle even if the subscription cancel failed.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Active {
		t.mu.Unlock()
		return nil
	}
	t.state = Stopping
	stop := t.tickerStop
	t.tickerStop = nil
	t.mu.Unlock()

	if err := t.provider.StopUpdates(ctx, TaskName); err != nil {
		log.Printf("stopping location updates: %v", err)
	}
	if stop != nil {
		close(stop)
	}

	if err := t.notifier.Notify("Location Tracking Stopped",
		"Your location is no longer being shared"); err != nil {
		log.Printf("stop notification failed: %v", err)
	}

	t.setState(Idle)
	return nil
}

// Teardown is the navigation-away path: it always clears the foreground
// ticker and stops the subscription. A subscription this instance started
// is cancelled unconditionally; a foreign one (say, surviving a restart)
// is stopped when the provider reports it running.
func (t *Tracker) Teardown(ctx context.Context) {
	t.mu.Lock()
	stop := t.tickerStop
	t.tickerStop = nil
	owned := t.state == Active || t.state == Stopping
	if owned {
		t.state = Idle
	}
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	if owned {
		// The in-process watch must be cancelled even when the liveness
		// record was already removed by a stop from another process.
		// StopUpdates tolerates a missing record.
		if err := t.provider.StopUpdates(ctx, TaskName); err != nil {
			log.Printf("stopping tracking on teardown: %v", err)
		}
		return
	}

	running, err := t.provider.HasStartedUpdates(ctx, TaskName)
	if err != nil {
		log.Printf("checking tracking status on teardown: %v", err)
		return
	}
	if running {
		if err := t.provider.StopUpdates(ctx, TaskName); err != nil {
			log.Printf("stopping tracking on teardown: %v", err)
		}
	}
}

// SyncState reflects the provider's subscription state into the lifecycle
// without starting anything, so a subscription that survived a restart is
// reported correctly and not duplicated.
func (t *Tracker) SyncState(ctx context.Context) (bool, error) {
	running, err := t.provider.HasStartedUpdates(ctx, TaskName)
	if err != nil {
		return false, fmt.Errorf("checking tracking status: %w", err)
	}
	t.mu.Lock()
	if running && t.state != Active {
		t.state = Active
	} else if !running && t.state == Active {
		t.state = Idle
	}
	t.mu.Unlock()
	return running, nil
}

// Wait blocks until both sampling goroutines have exited. Intended for the
// agent shutdown path after Stop or Teardown.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

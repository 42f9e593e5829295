package tracking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/autosched/fieldtrack/internal/api"
	"github.com/autosched/fieldtrack/internal/device"
	"github.com/autosched/fieldtrack/internal/tracking"
)

// fakeProvider scripts permission decisions and records every call the
// lifecycle makes against the device surface.
type fakeProvider struct {
	mu sync.Mutex

	fgGranted bool
	bgGranted bool

	// fgHold, when set, blocks foreground permission requests until closed.
	fgHold chan struct{}

	fgRequests int
	bgRequests int
	startCalls int
	stopCalls  int

	hasStarted bool
	closed     bool
	current    device.Fix
	currentErr error

	fixes chan device.Fix
}

func newFakeProvider(fg, bg bool) *fakeProvider {
	return &fakeProvider{fgGranted: fg, bgGranted: bg, fixes: make(chan device.Fix, 8)}
}

func (p *fakeProvider) RequestForegroundPermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	p.fgRequests++
	hold := p.fgHold
	granted := p.fgGranted
	p.mu.Unlock()
	if hold != nil {
		<-hold
	}
	return granted, nil
}

func (p *fakeProvider) RequestBackgroundPermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bgRequests++
	return p.bgGranted, nil
}

func (p *fakeProvider) ForegroundPermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fgGranted, nil
}

func (p *fakeProvider) CurrentPosition(ctx context.Context) (device.Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.currentErr
}

func (p *fakeProvider) StartUpdates(ctx context.Context, task string, opts device.WatchOptions) (<-chan device.Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startCalls++
	p.hasStarted = true
	return p.fixes, nil
}

func (p *fakeProvider) StopUpdates(ctx context.Context, task string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	p.hasStarted = false
	// The watch is in-process state; it is cancelled even when the
	// liveness record is already gone.
	if !p.closed {
		p.closed = true
		close(p.fixes)
	}
	return nil
}

func (p *fakeProvider) HasStartedUpdates(ctx context.Context, task string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasStarted, nil
}

func (p *fakeProvider) counts() (fg, bg, start, stop int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fgRequests, p.bgRequests, p.startCalls, p.stopCalls
}

// recordingSink collects transmitted samples.
type recordingSink struct {
	mu      sync.Mutex
	samples []api.LocationSample
}

func (s *recordingSink) Send(ctx context.Context, sample api.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *recordingSink) all() []api.LocationSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.LocationSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// recordingNotifier collects notification titles.
type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *recordingNotifier) has(title string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.titles {
		if t == title {
			return true
		}
	}
	return false
}

var testIdent = tracking.Identity{UserID: "u1", ScheduleID: "s1", OrgID: "o1"}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestForegroundDenied(t *testing.T) {
	provider := newFakeProvider(false, true)
	sink := &recordingSink{}
	tracker := tracking.New(provider, &recordingNotifier{}, sink, testIdent, time.Minute)

	err := tracker.Start(context.Background())
	if !errors.Is(err, tracking.ErrForegroundDenied) {
		t.Fatalf("err = %v, want ErrForegroundDenied", err)
	}

	_, bg, start, _ := provider.counts()
	if bg != 0 {
		t.Errorf("background permission requested %d times after foreground denial", bg)
	}
	if start != 0 {
		t.Errorf("subscription started %d times after denial", start)
	}
	if tracker.Active() {
		t.Error("tracker active after denial")
	}
	if tracker.State() != tracking.Denied {
		t.Errorf("state = %v, want Denied", tracker.State())
	}
}

func TestBackgroundDenied(t *testing.T) {
	provider := newFakeProvider(true, false)
	tracker := tracking.New(provider, &recordingNotifier{}, &recordingSink{}, testIdent, time.Minute)

	err := tracker.Start(context.Background())
	if !errors.Is(err, tracking.ErrBackgroundDenied) {
		t.Fatalf("err = %v, want ErrBackgroundDenied", err)
	}

	_, _, start, _ := provider.counts()
	if start != 0 {
		t.Errorf("subscription started %d times after background denial", start)
	}
	if tracker.Active() {
		t.Error("tracker active after background denial")
	}
}

func TestStartSequenceAndBackgroundSamples(t *testing.T) {
	provider := newFakeProvider(true, true)
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	tracker := tracking.New(provider, notifier, sink, testIdent, time.Minute)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tracker.Stop(context.Background())

	if !notifier.has("Location Tracking Started") {
		t.Error("start notification not sent")
	}
	if !tracker.Active() {
		t.Error("tracker not active after start")
	}

	provider.fixes <- device.Fix{Latitude: 51.5, Longitude: -0.12, Time: time.Now()}
	waitFor(t, func() bool { return sink.count() >= 1 }, "background fix never transmitted")

	got := sink.all()[0]
	want := api.LocationSample{UserID: "u1", Latitude: 51.5, Longitude: -0.12, ScheduleID: "s1", OrgID: "o1"}
	if got != want {
		t.Errorf("sample = %+v, want %+v", got, want)
	}
}

func TestDuplicateSamplesWithinInterval(t *testing.T) {
	// Both sampling paths are configured at the same interval, so one
	// window can produce two transmissions for the same approximate fix.
	// This documents the current behavior; coalescing is opt-in.
	provider := newFakeProvider(true, true)
	provider.current = device.Fix{Latitude: 2, Longitude: 2}
	sink := &recordingSink{}
	tracker := tracking.New(provider, &recordingNotifier{}, sink, testIdent, 30*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tracker.Stop(context.Background())

	provider.fixes <- device.Fix{Latitude: 1, Longitude: 1}

	waitFor(t, func() bool {
		var sawBackground, sawForeground bool
		for _, s := range sink.all() {
			if s.Latitude == 1 {
				sawBackground = true
			}
			if s.Latitude == 2 {
				sawForeground = true
			}
		}
		return sawBackground && sawForeground
	}, "expected transmissions from both sampling paths")
}

func TestCoalescingSinkCollapsesDuplicates(t *testing.T) {
	provider := newFakeProvider(true, true)
	provider.current = device.Fix{Latitude: 2, Longitude: 2}
	inner := &recordingSink{}
	sink := &tracking.CoalescingSink{Next: inner, Window: time.Hour}
	tracker := tracking.New(provider, &recordingNotifier{}, sink, testIdent, 30*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tracker.Stop(context.Background())

	provider.fixes <- device.Fix{Latitude: 1, Longitude: 1}

	waitFor(t, func() bool { return inner.count() >= 1 }, "no sample transmitted")
	// Give the other path time to fire; it must be swallowed.
	time.Sleep(120 * time.Millisecond)
	if got := inner.count(); got != 1 {
		t.Errorf("transmissions = %d, want 1 with coalescing enabled", got)
	}
}

func TestStop(t *testing.T) {
	provider := newFakeProvider(true, true)
	notifier := &recordingNotifier{}
	tracker := tracking.New(provider, notifier, &recordingSink{}, testIdent, time.Minute)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tracker.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if tracker.State() != tracking.Idle {
		t.Errorf("state = %v, want Idle", tracker.State())
	}
	if !notifier.has("Location Tracking Stopped") {
		t.Error("stop notification not sent")
	}
	_, _, _, stop := provider.counts()
	if stop == 0 {
		t.Error("subscription never cancelled")
	}

	done := make(chan struct{})
	go func() {
		tracker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sampling goroutines did not exit after Stop")
	}
}

func TestStartWhileActive(t *testing.T) {
	provider := newFakeProvider(true, true)
	tracker := tracking.New(provider, &recordingNotifier{}, &recordingSink{}, testIdent, time.Minute)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tracker.Stop(context.Background())

	if err := tracker.Start(context.Background()); !errors.Is(err, tracking.ErrAlreadyActive) {
		t.Errorf("second Start err = %v, want ErrAlreadyActive", err)
	}
}

func TestTeardownStopsForeignSubscription(t *testing.T) {
	// Simulates re-entering the detail screen after a restart: the OS
	// reports a subscription running even though this tracker instance
	// never started one.
	provider := newFakeProvider(true, true)
	provider.hasStarted = true
	tracker := tracking.New(provider, &recordingNotifier{}, &recordingSink{}, testIdent, time.Minute)

	tracker.Teardown(context.Background())

	_, _, _, stop := provider.counts()
	if stop != 1 {
		t.Errorf("StopUpdates called %d times, want 1", stop)
	}
}

func TestTeardownAfterExternalStop(t *testing.T) {
	// A stop issued from a second process removes the liveness record but
	// cannot reach this process's watch. Teardown must cancel the watch
	// anyway or the background path keeps transmitting.
	provider := newFakeProvider(true, true)
	sink := &recordingSink{}
	tracker := tracking.New(provider, &recordingNotifier{}, sink, testIdent, time.Minute)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// External stop: the record disappears, the watch lives on.
	provider.mu.Lock()
	provider.hasStarted = false
	provider.mu.Unlock()

	tracker.Teardown(context.Background())

	_, _, _, stop := provider.counts()
	if stop != 1 {
		t.Errorf("StopUpdates called %d times, want 1", stop)
	}

	done := make(chan struct{})
	go func() {
		tracker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sampling goroutines did not exit after teardown")
	}
	if tracker.Active() {
		t.Error("tracker still active after teardown")
	}
}

func TestConcurrentStartSingleWinner(t *testing.T) {
	provider := newFakeProvider(true, true)
	provider.fgHold = make(chan struct{})
	tracker := tracking.New(provider, &recordingNotifier{}, &recordingSink{}, testIdent, time.Minute)

	errs := make(chan error, 2)
	go func() { errs <- tracker.Start(context.Background()) }()
	waitFor(t, func() bool {
		fg, _, _, _ := provider.counts()
		return fg >= 1
	}, "first Start never reached the permission request")

	// The second caller arrives while the first is still negotiating.
	go func() { errs <- tracker.Start(context.Background()) }()
	close(provider.fgHold)

	var started, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			started++
		case errors.Is(err, tracking.ErrAlreadyActive):
			rejected++
		default:
			t.Fatalf("Start: %v", err)
		}
	}
	defer tracker.Stop(context.Background())

	if started != 1 || rejected != 1 {
		t.Errorf("started=%d rejected=%d, want exactly one of each", started, rejected)
	}
	fg, _, start, _ := provider.counts()
	if fg != 1 || start != 1 {
		t.Errorf("permission requests=%d subscriptions=%d, want 1 and 1", fg, start)
	}
}

func TestTeardownWithoutSubscription(t *testing.T) {
	provider := newFakeProvider(true, true)
	tracker := tracking.New(provider, &recordingNotifier{}, &recordingSink{}, testIdent, time.Minute)

	tracker.Teardown(context.Background())

	_, _, _, stop := provider.counts()
	if stop != 0 {
		t.Errorf("StopUpdates called %d times for an idle device", stop)
	}
}

func TestSyncStateReflectsProvider(t *testing.T) {
	provider := newFakeProvider(true, true)
	provider.hasStarted = true
	tracker := tracking.New(provider, &recordingNotifier{}, &recordingSink{}, testIdent, time.Minute)

	running, err := tracker.SyncState(context.Background())
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}
	if !running || !tracker.Active() {
		t.Error("surviving subscription not reflected into the tracker")
	}

	// SyncState must not have started anything.
	_, _, start, _ := provider.counts()
	if start != 0 {
		t.Errorf("SyncState started %d subscriptions", start)
	}

	provider.mu.Lock()
	provider.hasStarted = false
	provider.mu.Unlock()

	running, err = tracker.SyncState(context.Background())
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}
	if running || tracker.Active() {
		t.Error("stopped subscription still reported active")
	}
}

func TestForegroundPathSkipsWhenPermissionRevoked(t *testing.T) {
	provider := newFakeProvider(true, true)
	provider.current = device.Fix{Latitude: 2, Longitude: 2}
	sink := &recordingSink{}
	tracker := tracking.New(provider, &recordingNotifier{}, sink, testIdent, 50*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tracker.Stop(context.Background())

	// Revoke the foreground grant right after start; the ticker re-checks
	// it before every pull.
	provider.mu.Lock()
	provider.fgGranted = false
	provider.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	for _, s := range sink.all() {
		if s.Latitude == 2 {
			t.Fatal("foreground fix transmitted after permission was revoked")
		}
	}
}

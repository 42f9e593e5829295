package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/autosched/fieldtrack/internal/api"
)

// Sink receives location samples from both sampling paths.
type Sink interface {
	Send(ctx context.Context, sample api.LocationSample) error
}

// APISink transmits samples to the remote API.
type APISink struct {
	Client *api.Client
}

func (s APISink) Send(ctx context.Context, sample api.LocationSample) error {
	return s.Client.UpdateLocation(ctx, sample)
}

// CoalescingSink drops samples arriving within Window of the previous
// transmission, collapsing the duplicate produced when the background
// subscription and the foreground ticker fire in the same interval. A zero
// window forwards everything, preserving the dual transmission.
type CoalescingSink struct {
	Next   Sink
	Window time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

func (s *CoalescingSink) Send(ctx context.Context, sample api.LocationSample) error {
	if s.Window <= 0 {
		return s.Next.Send(ctx, sample)
	}

	s.mu.Lock()
	now := time.Now()
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.Window {
		s.mu.Unlock()
		return nil
	}
	s.lastSent = now
	s.mu.Unlock()

	return s.Next.Send(ctx, sample)
}

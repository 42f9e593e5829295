package device

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Feed reads positions from a websocket position gateway, the transport
// used by vehicle-mounted GPS units that publish over a local hub instead
// of exposing gpsd.
type Feed struct {
	url    string
	dialer *websocket.Dialer
}

// NewFeed creates a source subscribed to the gateway at url
// (e.g. ws://localhost:8090/positions).
func NewFeed(url string) *Feed {
	return &Feed{url: url, dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second}}
}

// feedMessage is one position frame from the gateway.
type feedMessage struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
}

func (m feedMessage) fix() Fix {
	t := time.Now()
	if m.Timestamp > 0 {
		t = time.UnixMilli(m.Timestamp)
	}
	return Fix{Latitude: m.Latitude, Longitude: m.Longitude, Accuracy: m.Accuracy, Time: t}
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to position feed %s: %w", f.url, err)
	}
	return conn, nil
}

// Current connects and returns the first frame from the gateway.
func (f *Feed) Current(ctx context.Context) (Fix, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return Fix{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	var msg feedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return Fix{}, fmt.Errorf("reading position feed: %w", err)
	}
	return msg.fix(), nil
}

// Watch connects and streams frames until ctx is cancelled.
func (f *Feed) Watch(ctx context.Context) (<-chan Fix, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Fix)
	go func() {
		defer close(out)
		defer conn.Close()

		// Unblock the read loop on cancellation.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			var msg feedMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					log.Printf("position feed closed: %v", err)
				}
				return
			}
			select {
			case out <- msg.fix():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// DefaultGPSDAddr is the conventional gpsd listen address.
const DefaultGPSDAddr = "localhost:2947"

const gpsdWatchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// GPSD reads positions from a gpsd daemon over its JSON TCP protocol. It is
// the on-device location source for headless field units.
type GPSD struct {
	addr       string
	dialer     net.Dialer
	retryPause time.Duration
}

// NewGPSD creates a source connected to addr, falling back to the
// conventional gpsd address when empty.
func NewGPSD(addr string) *GPSD {
	if addr == "" {
		addr = DefaultGPSDAddr
	}
	return &GPSD{
		addr:       addr,
		dialer:     net.Dialer{Timeout: 10 * time.Second},
		retryPause: 5 * time.Second,
	}
}

// tpvReport is the gpsd time-position-velocity report, reduced to the
// fields this client consumes.
type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"` // 0/1 no fix, 2 = 2D, 3 = 3D
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	EPH   *float64 `json:"eph"` // horizontal error estimate, meters
	Time  string   `json:"time"`
}

func (r tpvReport) fix() Fix {
	t, err := time.Parse(time.RFC3339, r.Time)
	if err != nil {
		t = time.Now()
	}
	return Fix{Latitude: r.Lat, Longitude: r.Lon, Accuracy: r.EPH, Time: t}
}

func (g *GPSD) connect(ctx context.Context) (net.Conn, *bufio.Scanner, error) {
	conn, err := g.dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to gpsd at %s: %w", g.addr, err)
	}
	if _, err := conn.Write([]byte(gpsdWatchCommand)); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("enabling gpsd watch: %w", err)
	}
	return conn, bufio.NewScanner(conn), nil
}

// Current connects, waits for the first usable TPV report and returns it.
func (g *GPSD) Current(ctx context.Context) (Fix, error) {
	conn, scanner, err := g.connect(ctx)
	if err != nil {
		return Fix{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class == "TPV" && report.Mode >= 2 {
			return report.fix(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return Fix{}, fmt.Errorf("reading gpsd stream: %w", err)
	}
	return Fix{}, fmt.Errorf("gpsd stream at %s closed before a fix", g.addr)
}

// Watch connects and streams TPV fixes until ctx is cancelled. Transient
// stream errors reconnect after a short pause.
func (g *GPSD) Watch(ctx context.Context) (<-chan Fix, error) {
	conn, scanner, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Fix)

	// current guards the connection handed to the cancellation watcher,
	// which closes it to unblock a pending read.
	var mu sync.Mutex
	current := conn
	setCurrent := func(c net.Conn) {
		mu.Lock()
		current = c
		mu.Unlock()
	}
	closeCurrent := func() {
		mu.Lock()
		if current != nil {
			current.Close()
		}
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeCurrent()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer closeCurrent()

		for {
			for scanner.Scan() {
				select {
				case <-ctx.Done():
					return
				default:
				}
				var report tpvReport
				if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
					continue
				}
				if report.Class != "TPV" || report.Mode < 2 {
					continue
				}
				select {
				case out <- report.fix():
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			if err := scanner.Err(); err != nil {
				log.Printf("gpsd stream error: %v", err)
			}

			// Reconnect. Keep trying for as long as the watch stands: the
			// stream is advertised as continuous, so a daemon outage must
			// not silently end it.
			conn.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(g.retryPause):
				}
				c, s, err := g.connect(ctx)
				if err != nil {
					log.Printf("gpsd reconnect failed: %v", err)
					continue
				}
				conn, scanner = c, s
				setCurrent(conn)
				break
			}
		}
	}()
	return out, nil
}

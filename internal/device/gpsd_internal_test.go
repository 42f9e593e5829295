package device

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

// serveTPVOnce accepts one connection, consumes the watch command, writes
// line and drops the connection.
func serveTPVOnce(ln net.Listener, line string) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	br := bufio.NewReader(conn)
	if _, err := br.ReadString('\n'); err != nil {
		return
	}
	conn.Write([]byte(line + "\n"))
}

func TestWatchReconnectKeepsRetrying(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()

	go func() {
		serveTPVOnce(ln, `{"class":"TPV","mode":3,"lat":1,"lon":1,"time":"2026-08-30T10:00:00Z"}`)
		// Go dark: reconnect attempts during the outage must fail and be
		// retried, not end the stream.
		ln.Close()
	}()

	src := NewGPSD(addr)
	src.retryPause = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fixes, err := src.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	select {
	case f := <-fixes:
		if f.Latitude != 1 {
			t.Errorf("first fix = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fix before the outage")
	}

	// Let a few reconnect attempts fail, then bring the daemon back on the
	// same address.
	time.Sleep(60 * time.Millisecond)
	var ln2 net.Listener
	for i := 0; i < 50; i++ {
		ln2, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("re-listen on %s: %v", addr, err)
	}
	defer ln2.Close()
	go serveTPVOnce(ln2, `{"class":"TPV","mode":3,"lat":2,"lon":2,"time":"2026-08-30T10:01:00Z"}`)

	select {
	case f := <-fixes:
		if f.Latitude != 2 {
			t.Errorf("fix after outage = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream never recovered after the outage")
	}
}

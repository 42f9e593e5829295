package device

import (
	"fmt"
	"io"
	"time"
)

// Notifier is the boundary for local "tracking started/stopped" style
// notifications.
type Notifier interface {
	Notify(title, body string) error
}

// WriterNotifier prints notifications to a stream, the terminal stand-in
// for the mobile notification tray.
type WriterNotifier struct {
	Out io.Writer
}

func (n WriterNotifier) Notify(title, body string) error {
	_, err := fmt.Fprintf(n.Out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), title, body)
	return err
}

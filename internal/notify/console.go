// Package notify delivers reminder notifications to a terminal, a Telegram
// chat or an MQTT topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"sehri-go/internal/sehri"
)

// ConsoleNotifier prints notifications as lines of text. A terminal never
// refuses, so permission is always granted.
type ConsoleNotifier struct {
	mu    sync.Mutex
	out   io.Writer
	clock sehri.Clock
}

var _ sehri.Notifier = (*ConsoleNotifier)(nil)

func NewConsoleNotifier(out io.Writer, clock sehri.Clock) *ConsoleNotifier {
	return &ConsoleNotifier{out: out, clock: clock}
}

func (n *ConsoleNotifier) PermissionState(context.Context) sehri.PermissionState {
	return sehri.PermissionGranted
}

func (n *ConsoleNotifier) RequestPermission(context.Context) (sehri.PermissionState, error) {
	return sehri.PermissionGranted, nil
}

func (n *ConsoleNotifier) Show(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	stamp := n.clock.Now().Format(time.Kitchen)
	if _, err := fmt.Fprintf(n.out, "[%s] %s\n    %s\n", stamp, title, body); err != nil {
		return fmt.Errorf("writing notification: %w", err)
	}
	return nil
}

// BellVibrator stands in for haptics on a terminal: one BEL per pulse.
// Pauses in the pattern are not slept; the bell is best-effort.
type BellVibrator struct {
	out io.Writer
}

var _ sehri.Vibrator = (*BellVibrator)(nil)

func NewBellVibrator(out io.Writer) *BellVibrator {
	return &BellVibrator{out: out}
}

// Vibrate rings once for every even-indexed (pulse) entry of pattern.
func (v *BellVibrator) Vibrate(pattern []time.Duration) error {
	pulses := (len(pattern) + 1) / 2
	if pulses == 0 {
		return nil
	}
	bells := make([]byte, pulses)
	for i := range bells {
		bells[i] = '\a'
	}
	_, err := v.out.Write(bells)
	return err
}

package transport

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Watchdog fires once when no progress was reported for a whole timeout.
// A zero timeout disables it.
type Watchdog struct {
	timer   *clock.Timer
	timeout time.Duration

	fired   bool
	stopped bool
	mu      sync.Mutex
}

func NewWatchdog(clk clock.Clock, timeout time.Duration, fire func()) *Watchdog {
	w := &Watchdog{timeout: timeout}
	if timeout <= 0 {
		return w
	}

	w.timer = clk.AfterFunc(timeout, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.fired = true
		w.mu.Unlock()

		fire()
	})

	return w
}

// Kick postpones the deadline by a full timeout.
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer == nil || w.stopped || w.fired {
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watchdog) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// Package watchdog bounds the wall-clock time of an export run.
package watchdog

import (
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrExpired is passed to the expiry callback when the timeout elapses.
var ErrExpired = errors.New("watchdog timeout expired")

// Watchdog invokes a callback once if it is not disarmed within its timeout.
type Watchdog struct {
	timer   clockwork.Timer
	timeout time.Duration
	fired   atomic.Bool
}

// Arm starts a watchdog that calls onExpire after timeout unless Disarm is
// called first. onExpire runs on its own goroutine.
func Arm(clock clockwork.Clock, timeout time.Duration, onExpire func(error)) *Watchdog {
	w := &Watchdog{timeout: timeout}
	w.timer = clock.AfterFunc(timeout, func() {
		w.fired.Store(true)
		onExpire(ErrExpired)
	})
	return w
}

// Disarm stops the watchdog. It reports whether the callback was prevented
// from running.
func (w *Watchdog) Disarm() bool {
	return w.timer.Stop()
}

// Fired reports whether the timeout elapsed.
func (w *Watchdog) Fired() bool {
	return w.fired.Load()
}

// Timeout is the duration the watchdog was armed with.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// ExitOnTimeout returns an expiry callback that logs the error and terminates
// the process with a non-zero status. The in-flight day is abandoned.
func ExitOnTimeout(logger *slog.Logger) func(error) {
	return exitWith(logger, os.Exit)
}

func exitWith(logger *slog.Logger, exit func(int)) func(error) {
	return func(err error) {
		logger.Error("export run exceeded watchdog timeout, exiting", "error", err)
		exit(1)
	}
}

// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import "log/slog"

// Go launches fn in a new goroutine. A panic in fn is recovered and logged with the
// worker name instead of crashing the process. Use it for every fire-and-forget
// goroutine: the deletion processor, audit batch flushing, metric collectors.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "worker", name, "panic", r)
			}
		}()
		fn()
	}()
}

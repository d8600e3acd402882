package shelter

import "time"

// Clock supplies commit timestamps.  Production code uses RealClock; tests
// inject a fixed or stepping clock so last_updated is deterministic.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Recorder receives counters from the store, coordinator and notifier.
// The metrics package provides the Prometheus implementation.
type Recorder interface {
	// CommitResult counts one commit attempt by outcome:
	// "ok", "conflict", "invalid", "unauthorized", "not_found" or "error".
	CommitResult(result string)
	// Subscribers reports the current number of live subscriptions.
	Subscribers(n int)
	// Overrun counts one forced disconnect.
	Overrun()
}

type nopRecorder struct{}

func (nopRecorder) CommitResult(string) {}
func (nopRecorder) Subscribers(int)     {}
func (nopRecorder) Overrun()            {}

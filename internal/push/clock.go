// Package push implements the client-resident scheduler that decides when a
// trending question is surfaced to a user, and the persistent record log it
// consults.
package push

import "time"

// Timer is a cancellable one-shot timer.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock reads and timer creation so the scheduler can be
// driven by a fake clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

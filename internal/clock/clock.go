// Package clock isolates the engine from the system clock so extension
// windows and close detection are reproducible in tests without real delays.
package clock

import (
	"sync"
	"time"
)

// Clock is the only source of current time for auction logic.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by the wall clock, in UTC.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a manually controlled Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake clock frozen at the given instant.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

// Now returns the clock's current instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to the given instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

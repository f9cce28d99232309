// Package reconcile decides when to fetch the authoritative mask snapshot and
// whether to trust it over the local paint cache.
package reconcile

import (
	"sync"
	"time"
)

// DefaultQuiet is the quiet period after the last stroke before a
// reconciliation fetch is issued.
const DefaultQuiet = 500 * time.Millisecond

// Timer is the subset of time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts timer creation so the debounce behavior is testable without
// real time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by time.AfterFunc.
func SystemClock() Clock { return realClock{} }

// Scheduler coalesces bursts of strokes into a single reconciliation fetch.
// Each Schedule call while a timer is pending cancels and restarts it, so the
// fetch fires one quiet period after the last stroke, not the first.
type Scheduler struct {
	quiet time.Duration
	clock Clock
	fire  func()

	mu      sync.Mutex
	pending Timer
	stopped bool
}

// NewScheduler creates a scheduler that calls fire after the quiet period.
// A zero quiet duration falls back to DefaultQuiet.
func NewScheduler(quiet time.Duration, clock Clock, fire func()) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{quiet: quiet, clock: clock, fire: fire}
}

// Schedule resets the quiet timer.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = s.clock.AfterFunc(s.quiet, func() {
		s.mu.Lock()
		stopped := s.stopped
		s.pending = nil
		s.mu.Unlock()
		if !stopped {
			s.fire()
		}
	})
}

// FireNow cancels any pending timer and fires immediately. Used on slice or
// segmentation changes, which must pull the authoritative state without
// waiting for quiescence.
func (s *Scheduler) FireNow() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.mu.Unlock()
	s.fire()
}

// Stop cancels any pending timer and prevents further firing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Package scheduler provides named, cancellable one-shot timers for a single
// room. It generalizes the teacher's per-room context.WithTimeout phase timer
// to many independently named timers (one per fire streak, one per buzzer
// window, and so on) sharing one cancellation scheme.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler arms and cancels named one-shot callbacks. Cancellation is
// epoch-based: arming a name bumps its epoch, and a callback checks its
// captured epoch against the current one before running, so a timer that
// fires after being cancelled (or superseded by a later Arm of the same
// name) becomes a no-op instead of running stale logic.
type Scheduler struct {
	mu     sync.Mutex
	epochs map[string]uint64
	timers map[string]*time.Timer
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		epochs: make(map[string]uint64),
		timers: make(map[string]*time.Timer),
	}
}

// Arm schedules fn to run after d, under the given name. Arming a name that
// already has a pending timer cancels the previous one first; a stale
// callback that reaches its epoch check after the new Arm call observes a
// mismatched epoch and does nothing. An fn that is already running when the
// new Arm call occurs is not stopped.
func (s *Scheduler) Arm(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	s.epochs[name]++
	epoch := s.epochs[name]
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		current, ok := s.epochs[name]
		stale := !ok || current != epoch
		if !stale && s.timers[name] == timer {
			delete(s.timers, name)
		}
		s.mu.Unlock()
		if stale {
			return
		}
		fn()
	})
	s.timers[name] = timer
	s.mu.Unlock()
}

// Cancel stops the timer under name, if any, and invalidates any callback
// already in flight for it that has not yet reached its epoch check. Cancel
// is idempotent. It does not wait: an fn that is already running when Cancel
// is called keeps running after Cancel returns.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	s.epochs[name]++
}

// Active reports whether name currently has a pending, uncancelled timer.
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// CancelAll stops every pending timer, invalidating all in-flight callbacks.
// Used on room teardown to guarantee no scheduled work touches a room after
// it is removed from the registry.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		s.epochs[name]++
	}
	s.timers = make(map[string]*time.Timer)
}

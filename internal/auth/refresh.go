package auth

import (
	"sync"
	"time"

	"github.com/synthesishq/synthesis-agent/internal/logging"
)

const (
	// refreshLeeway is how long before expiry the proactive refresh fires.
	refreshLeeway = 2 * time.Minute
	// minRefreshDelay is the floor on any scheduled delay so a malformed
	// expiry cannot produce a hot retry loop.
	minRefreshDelay = 10 * time.Second
)

// RefreshDelay converts milliseconds-until-expiry into the timer delay:
// leeway before expiry, clamped to the floor.
func RefreshDelay(msUntilExpiry int64) time.Duration {
	delay := time.Duration(msUntilExpiry)*time.Millisecond - refreshLeeway
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}
	return delay
}

// RefreshFunc performs one token refresh. It returns the delay until the
// next refresh and whether the scheduler should re-arm; ok=false leaves
// the scheduler idle (the session has ended).
type RefreshFunc func() (next time.Duration, ok bool)

// Scheduler owns the single proactive-refresh timer. It has two states,
// idle (no timer) and armed (timer pending); arming always stops any
// existing timer first so the timer can never double-fire.
type Scheduler struct {
	mu      sync.Mutex
	timer   *time.Timer
	refresh RefreshFunc
	logger  *logging.Logger
}

// NewScheduler creates an idle Scheduler that calls refresh when armed
// timers fire.
func NewScheduler(refresh RefreshFunc, logger *logging.Logger) *Scheduler {
	return &Scheduler{refresh: refresh, logger: logger}
}

// Arm schedules a refresh after delay, replacing any pending timer.
func (s *Scheduler) Arm(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.fire)

	if s.logger != nil {
		s.logger.Debug("refresh timer armed", "delay_ms", delay.Milliseconds())
	}
}

// Cancel stops any pending timer and returns the scheduler to idle.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Armed reports whether a refresh timer is currently pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	next, ok := s.refresh()
	if !ok {
		if s.logger != nil {
			s.logger.Debug("refresh ended session, scheduler idle")
		}
		return
	}
	s.Arm(next)
}

package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// FireFunc receives the owner and the version token captured at arm time
// when a ticket's TTL elapses.
type FireFunc func(ownerID, token string)

// ExpirationScheduler keeps one pending auto-close timer per owner.
// Cancellation is best effort: a timer already in flight may still fire,
// so the callback must re-check ticket state before acting. Correctness
// lives in the registry's compare-and-set, not here.
type ExpirationScheduler struct {
	mu     sync.Mutex
	timers map[string]*armedTimer
	fire   FireFunc
	logger *zap.Logger
}

type armedTimer struct {
	timer *time.Timer
	token string
}

// NewExpirationScheduler builds a scheduler that invokes fire when a timer
// elapses.
func NewExpirationScheduler(logger *zap.Logger, fire FireFunc) *ExpirationScheduler {
	return &ExpirationScheduler{
		timers: make(map[string]*armedTimer),
		fire:   fire,
		logger: logger,
	}
}

// Arm schedules the deferred auto-close for the owner, replacing any pending
// timer. The token identifies the logical ticket; a fire against a replaced
// or closed ticket is discarded by the callback's state check.
func (s *ExpirationScheduler) Arm(ownerID, token string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[ownerID]; ok {
		prev.timer.Stop()
	}
	armed := &armedTimer{token: token}
	armed.timer = time.AfterFunc(delay, func() {
		s.expire(ownerID, armed)
	})
	s.timers[ownerID] = armed
	s.logger.Debug("expiration armed", zap.String("owner_id", ownerID), zap.Duration("delay", delay))
}

// Cancel drops the pending timer for the owner when its token matches.
// A timer re-armed for a newer logical ticket is left alone.
func (s *ExpirationScheduler) Cancel(ownerID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if armed, ok := s.timers[ownerID]; ok && armed.token == token {
		armed.timer.Stop()
		delete(s.timers, ownerID)
	}
}

// Pending reports whether a timer is armed for the owner.
func (s *ExpirationScheduler) Pending(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[ownerID]
	return ok
}

// Shutdown stops every pending timer.
func (s *ExpirationScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ownerID, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, ownerID)
	}
}

func (s *ExpirationScheduler) expire(ownerID string, armed *armedTimer) {
	s.mu.Lock()
	if current, ok := s.timers[ownerID]; ok && current == armed {
		delete(s.timers, ownerID)
	}
	s.mu.Unlock()

	s.fire(ownerID, armed.token)
}

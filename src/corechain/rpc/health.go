package rpc

import (
	"sync"
	"time"
)

// simpleHealthTracker trips an endpoint's circuit breaker after
// consecutiveFailureLimit failures in a row, and resets it after
// cooldown elapses since the last failure.
type simpleHealthTracker struct {
	mu                        sync.Mutex
	consecutiveFailureLimit   int
	cooldown                  time.Duration
	state                     map[string]*endpointState
}

type endpointState struct {
	consecutiveFailures int
	lastFailure         time.Time
	tripped             bool
}

// NewHealthTracker builds a HealthTracker with the given failure
// threshold and cooldown before re-probing a tripped endpoint.
func NewHealthTracker(consecutiveFailureLimit int, cooldown time.Duration) HealthTracker {
	return &simpleHealthTracker{
		consecutiveFailureLimit: consecutiveFailureLimit,
		cooldown:                cooldown,
		state:                   make(map[string]*endpointState),
	}
}

func (t *simpleHealthTracker) RecordSuccess(endpoint string, durationMS int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(endpoint)
	s.consecutiveFailures = 0
	s.tripped = false
}

func (t *simpleHealthTracker) RecordFailure(endpoint string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(endpoint)
	s.consecutiveFailures++
	s.lastFailure = time.Now()
	if s.consecutiveFailures >= t.consecutiveFailureLimit {
		s.tripped = true
	}
}

func (t *simpleHealthTracker) IsHealthy(endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(endpoint)
	if !s.tripped {
		return true
	}
	if time.Since(s.lastFailure) > t.cooldown {
		s.tripped = false
		s.consecutiveFailures = 0
		return true
	}
	return false
}

func (t *simpleHealthTracker) Reset(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, endpoint)
}

// entry assumes the caller holds t.mu.
func (t *simpleHealthTracker) entry(endpoint string) *endpointState {
	s, ok := t.state[endpoint]
	if !ok {
		s = &endpointState{}
		t.state[endpoint] = s
	}
	return s
}

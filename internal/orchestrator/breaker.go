package orchestrator

import (
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state for one model.
type BreakerState int

const (
	StateClosed   BreakerState = iota // normal operation
	StateOpen                         // failing, reject requests
	StateHalfOpen                     // probing for recovery
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker stops routing to a model that is consistently failing, so fallback
// models get the traffic instead of a dead primary.
type Breaker struct {
	mu sync.Mutex

	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	state         BreakerState
	failures      int
	lastFailure   time.Time
	halfOpenTried int
}

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 60 * time.Second
	defaultHalfOpenMax  = 2
)

func newBreaker() *Breaker {
	return &Breaker{
		maxFailures:  defaultMaxFailures,
		resetTimeout: defaultResetTimeout,
		halfOpenMax:  defaultHalfOpenMax,
		state:        StateClosed,
	}
}

// Allow reports whether a request may pass. In the open state it flips to
// half-open once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) >= b.resetTimeout {
			b.state = StateHalfOpen
			b.halfOpenTried = 1
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenTried < b.halfOpenMax {
			b.halfOpenTried++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = StateClosed
	b.halfOpenTried = 0
}

// RecordFailure counts a failure; enough consecutive failures open the
// breaker. A half-open failure reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

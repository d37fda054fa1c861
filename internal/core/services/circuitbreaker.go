package services

import (
	"errors"
	"sync"
	"time"
)

// CircuitBreakerState is one of the three states spec.md §4.8 names.
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

// ErrCircuitOpen is returned by Allow when the breaker is open and the
// reset timeout has not yet elapsed: calls must fail fast, is_retryable=false.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker is a per-endpoint, hand-rolled breaker: no pack repo in
// the retrieved examples imports a circuit-breaker library, so this is
// the one component built on the standard library alone (sync + time).
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failMax          int
	resetTimeout     time.Duration
	halfOpenMax      int
	consecutiveFails int
	halfOpenProbes   int
	openedAt         time.Time
}

// NewCircuitBreaker wires CB_FAIL_MAX, CB_RESET_TIMEOUT_SECONDS, and
// CB_HALF_OPEN_MAX. A breaker with failMax <= 0 never opens (the
// equivalent of CB_ENABLED=false).
func NewCircuitBreaker(failMax int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	if halfOpenMax <= 0 {
		halfOpenMax = 1
	}
	return &CircuitBreaker{
		state:        CircuitClosed,
		failMax:      failMax,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
	}
}

// Allow reports whether a call may proceed, transitioning open -> half_open
// once resetTimeout has elapsed since the breaker opened.
func (b *CircuitBreaker) Allow() error {
	if b.failMax <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.state = CircuitHalfOpen
			b.halfOpenProbes = 0
			return nil
		}
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if b.halfOpenProbes >= b.halfOpenMax {
			return ErrCircuitOpen
		}
		b.halfOpenProbes++
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the breaker: a success in half_open closes it; a
// success in closed resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	if b.failMax <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = 0
	b.state = CircuitClosed
}

// RecordFailure only counts retryable failures, per spec.md §4.8: a
// permanent failure is not a transport-health signal.
func (b *CircuitBreaker) RecordFailure() {
	if b.failMax <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.open()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failMax {
		b.open()
	}
}

func (b *CircuitBreaker) open() {
	b.state = CircuitOpen
	b.openedAt = time.Now()
	b.consecutiveFails = 0
}

// State reports the current state for the ops metrics endpoint.
func (b *CircuitBreaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

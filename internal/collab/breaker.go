// Package collab talks to the external filtering and summary collaborators.
// Every call is guarded by a circuit breaker and every failure is converted
// to a fallback by the caller, so collaborators never block playback.
package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stwalsh4118/branchreel/internal/logger"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed indicates the circuit is closed (normal operation)
	StateClosed CircuitState = iota
	// StateOpen indicates the circuit is open (blocking calls)
	StateOpen
	// StateHalfOpen indicates one trial call is allowed through
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
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

// ErrCircuitOpen indicates the breaker is rejecting calls to a collaborator
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker stops calling a collaborator after repeated failures and lets a
// trial call through once resetTimeout has passed.
type Breaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
}

// NewBreaker creates a closed breaker for the named collaborator
func NewBreaker(name string, failureThreshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		state:            StateClosed,
	}
}

// Do runs fn unless the circuit is open. Context cancellation by the caller
// is not counted as a collaborator failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil:
		b.recordSuccessLocked()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// caller gave up
	default:
		b.recordFailureLocked()
	}
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	return b.state != StateOpen
}

// refreshLocked moves an expired open circuit to half-open (must hold lock)
func (b *Breaker) refreshLocked() {
	if b.state == StateOpen && b.now().Sub(b.lastFailureTime) >= b.resetTimeout {
		b.state = StateHalfOpen
		b.failures = 0
	}
}

// recordSuccessLocked records a successful call (must hold lock)
func (b *Breaker) recordSuccessLocked() {
	b.failures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		logger.Log.Info().
			Str("collaborator", b.name).
			Msg("Circuit closed")
	}
}

// recordFailureLocked records a failed call (must hold lock)
func (b *Breaker) recordFailureLocked() {
	b.failures++
	b.lastFailureTime = b.now()

	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		if b.state != StateOpen {
			logger.Log.Warn().
				Str("collaborator", b.name).
				Int("failures", b.failures).
				Dur("reset_timeout", b.resetTimeout).
				Msg("Circuit opened")
		}
		b.state = StateOpen
	}
}

// State returns the current state of the breaker
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	return b.state
}

// Failures returns the current consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset returns the breaker to its initial closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.lastFailureTime = time.Time{}
}

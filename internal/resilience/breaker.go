// SPDX-License-Identifier: MIT

// Package resilience provides the circuit breaker that guards calls to
// external helper services.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/mediagate/mediagate/internal/metrics"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned while the breaker refuses calls.
var ErrOpen = errors.New("circuit breaker is open")

// clock abstracts time for tests.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker trips after threshold consecutive failures and refuses calls for
// resetTimeout, then lets probes through. Any success closes it again.
type Breaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	clock        clock
}

// Option adjusts a Breaker.
type Option func(*Breaker)

// WithClock replaces the wall clock in tests.
func WithClock(c clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// New builds a closed breaker. threshold <= 0 defaults to 3 and
// resetTimeout <= 0 to 30 s.
func New(name string, threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.SetBreakerState(b.name, string(b.state))
	return b
}

// Execute runs fn under the breaker. Every error fn returns counts as a
// failure; callers whose application-level refusals must not trip the
// breaker have to swallow those inside fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) > b.resetTimeout {
			b.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		// Closed, or half-open where probes pass through.
		return true
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == StateHalfOpen {
		metrics.IncBreakerTrip(b.name, "probe_failed")
		b.transitionTo(StateOpen)
		return
	}
	if b.state == StateClosed && b.failures >= b.threshold {
		metrics.IncBreakerTrip(b.name, "threshold")
		b.transitionTo(StateOpen)
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.transitionTo(StateClosed)
	}
}

// transitionTo requires b.mu held.
func (b *Breaker) transitionTo(next State) {
	if b.state == next {
		return
	}
	b.state = next
	if next == StateOpen {
		b.openedAt = b.clock.Now()
	}
	metrics.SetBreakerState(b.name, string(next))
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

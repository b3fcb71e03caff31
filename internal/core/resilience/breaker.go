// Package resilience guards calls to remote providers.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Check while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

const (
	defaultThreshold  = 5
	defaultResetAfter = time.Minute
)

// Config tunes a breaker.
type Config struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// ResetAfter is how long the circuit stays open before one trial call.
	ResetAfter time.Duration
}

// DefaultConfig opens after five failures and tries again after a minute.
func DefaultConfig() Config {
	return Config{Threshold: defaultThreshold, ResetAfter: defaultResetAfter}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = defaultThreshold
	}

	if c.ResetAfter <= 0 {
		c.ResetAfter = defaultResetAfter
	}

	return c
}

// Breaker counts consecutive failures of one provider. After Threshold
// failures it rejects calls for ResetAfter, then lets a single trial call through:
// a successful one closes it, a failed one reopens it.
type Breaker struct {
	name string
	cfg  Config

	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
	probing   bool

	now      func() time.Time
	onChange func(name string, from, to State)
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// OnStateChange registers a callback invoked after every transition, outside
// the breaker lock.
func OnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// New returns a closed breaker for the named provider.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{name: name, cfg: cfg.withDefaults(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name returns the guarded provider name.
func (b *Breaker) Name() string { return b.name }

// Allow reports whether a call may proceed. In the half-open state only the
// first caller gets through until it reports back.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	from := b.state

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true
	case StateOpen:
		if b.now().Before(b.openUntil) {
			b.mu.Unlock()
			return false
		}

		b.state = StateHalfOpen
		b.probing = true
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)

		return true
	default:
		if b.probing {
			b.mu.Unlock()
			return false
		}

		b.probing = true
		b.mu.Unlock()

		return true
	}
}

// Check is Allow with an error carrying the reopen time.
func (b *Breaker) Check() error {
	if b.Allow() {
		return nil
	}

	b.mu.Lock()
	until := b.openUntil
	b.mu.Unlock()

	return fmt.Errorf("%s: %w until %s", b.name, ErrOpen, until.Format(time.RFC3339))
}

// Success resets the failure count and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	from := b.state
	b.failures = 0
	b.probing = false
	b.state = StateClosed
	b.mu.Unlock()

	b.notify(from, StateClosed)
}

// Failure records a failed call and reports whether the circuit is now open.
func (b *Breaker) Failure() bool {
	b.mu.Lock()
	from := b.state
	b.failures++
	b.probing = false

	if from == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.state = StateOpen
		b.openUntil = b.now().Add(b.cfg.ResetAfter)
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)

	return to == StateOpen
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		return StateHalfOpen
	}

	return b.state
}

func (b *Breaker) notify(from, to State) {
	if from == to || b.onChange == nil {
		return
	}

	b.onChange(b.name, from, to)
}

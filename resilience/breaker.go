package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"time"
)

// State is the state of a Breaker.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Disabled lets every call through.
	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
	// MaxFailures is the number of consecutive counted failures that opens the circuit.
	MaxFailures int `mapstructure:"max_failures" yaml:"max_failures" validate:"gte=0"`
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	// HalfOpenMaxCalls is the number of probes allowed while half-open.
	HalfOpenMaxCalls int `mapstructure:"half_open_max_calls" yaml:"half_open_max_calls"`
	// CountIf decides whether an error counts as a failure. Defaults to DefaultRetryIf.
	CountIf func(error) bool `mapstructure:"-" yaml:"-"`
	// OnStateChange is called on every transition, under the breaker lock.
	OnStateChange func(from, to State) `mapstructure:"-" yaml:"-"`
}

// ApplyDefaults fills unset fields.
func (c *BreakerConfig) ApplyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	if c.CountIf == nil {
		c.CountIf = DefaultRetryIf
	}
}

// Breaker fails fast after repeated failures of a remote collaborator.
// Only errors accepted by CountIf are counted, so permanent failures such
// as a missing file do not open the circuit.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCalls int
	openedAt      time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.ApplyDefaults()
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open. A nil Breaker runs fn directly.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil || b.cfg.Disabled {
		return fn(ctx)
	}
	if !b.allow() {
		var zero T
		return zero, ErrCircuitOpen
	}
	result, err := fn(ctx)
	b.record(err)
	return result, err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failures = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.current() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenCalls < b.cfg.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
	}
	return false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.CountIf(err) {
		switch b.current() {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.cfg.HalfOpenMaxCalls {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.failures++
	switch b.current() {
	case StateClosed:
		if b.failures >= b.cfg.MaxFailures {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// current resolves an expired open state to half-open. Callers hold mu.
func (b *Breaker) current() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successes = 0
	b.halfOpenCalls = 0
	switch to {
	case StateClosed:
		b.failures = 0
	case StateOpen:
		b.openedAt = b.now()
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

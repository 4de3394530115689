// Package resilience guards upstream data providers with a circuit breaker so
// an outage fails fast instead of burning the retry budget on every symbol.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of a breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned without calling the guarded function while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker settings.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that closes it again
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before a trial call
	Cooldown time.Duration
	// IsFailure classifies errors; nil counts every error
	IsFailure func(error) bool
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	}
}

// Stats is a snapshot of breaker counters.
type Stats struct {
	State     State `json:"state"`
	Calls     int64 `json:"calls"`
	Failures  int64 `json:"failures"`
	Rejected  int64 `json:"rejected"`
	Successes int64 `json:"successes"`
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name   string
	config Config
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	stats     Stats
}

// New creates a closed breaker.
func New(name string, config Config, logger zerolog.Logger) *Breaker {
	defaults := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}
	return &Breaker{
		name:   name,
		config: config,
		logger: logger.With().Str("breaker", name).Logger(),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	_, err := Call(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Call runs fn under b and returns its result.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	v, err := fn()
	if err != nil && b.isFailure(err) {
		b.recordFailure(err)
		return zero, err
	}
	b.recordSuccess()
	return v, err
}

func (b *Breaker) isFailure(err error) bool {
	if b.config.IsFailure == nil {
		return true
	}
	return b.config.IsFailure(err)
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Calls++
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.stats.Rejected++
			return ErrOpen
		}
		b.transitionTo(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Successes++
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Failures++
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.logger.Warn().Err(err).Int("failures", b.failures).Dur("cooldown", b.config.Cooldown).Msg("Circuit opened")
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.logger.Warn().Err(err).Msg("Trial call failed, circuit reopened")
		b.transitionTo(StateOpen)
	}
}

// caller holds b.mu
func (b *Breaker) transitionTo(state State) {
	if state == StateOpen {
		b.openedAt = b.now()
	}
	if state == StateClosed && b.state != StateClosed {
		b.logger.Info().Msg("Circuit closed")
	}
	b.state = state
	b.failures = 0
	b.successes = 0
}

// State returns the current state. An open breaker past its cooldown still
// reports OPEN until the next call moves it to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.State = b.state
	return s
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

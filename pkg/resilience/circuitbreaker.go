// Package resilience guards store I/O: a circuit breaker that only counts
// availability failures, exponential-backoff retry and a per-attempt
// deadline.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while the breaker is
// open or its half-open trial slots are taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
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

// CircuitBreakerConfig controls when the breaker opens and how it recovers.
// Zero values select defaults.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// closed breaker.
	FailureThreshold int
	// ResetTimeout is how long an open breaker rejects calls before letting
	// trial calls through.
	ResetTimeout time.Duration
	// HalfOpenMaxRequests bounds the trial calls in flight while half-open.
	HalfOpenMaxRequests int
	// IsFailure decides whether an error counts against the backend. Errors
	// it rejects pass through and reset nothing. Nil counts every error
	// except a cancelled caller.
	IsFailure func(error) bool
	// OnStateChange, if set, is called with the lock held after every
	// transition. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// IsFailure is the default CircuitBreakerConfig.IsFailure.
func IsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Counts is a snapshot of what the breaker has seen since it last closed.
type Counts struct {
	Requests            int
	Failures            int
	ConsecutiveFailures int
	Rejected            int
}

// CircuitBreaker fails fast once a backend has failed FailureThreshold times
// in a row, then admits a limited number of trial calls after ResetTimeout.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	trials   int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsFailure
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
	}
}

// Execute runs fn if the breaker admits the call and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	halfOpen, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(halfOpen, err)
	return err
}

// GetState returns the current state. An open breaker whose ResetTimeout has
// passed still reports open until the next call moves it to half-open.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) admit() (halfOpen bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			cb.counts.Rejected++
			return false, fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.setState(StateHalfOpen)
		cb.trials = 0
		cb.logger.Info("circuit half-open", "after", cb.cfg.ResetTimeout)
	}
	if cb.state == StateHalfOpen {
		if cb.trials >= cb.cfg.HalfOpenMaxRequests {
			cb.counts.Rejected++
			return false, fmt.Errorf("%w: %s (trial call in flight)", ErrCircuitOpen, cb.name)
		}
		cb.trials++
	}
	cb.counts.Requests++
	return cb.state == StateHalfOpen, nil
}

func (cb *CircuitBreaker) record(halfOpen bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if halfOpen {
		cb.trials--
	}
	if err != nil && !cb.cfg.IsFailure(err) {
		return
	}
	if err == nil {
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
			cb.counts = Counts{}
			cb.logger.Info("circuit closed")
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	switch {
	case cb.state == StateHalfOpen:
		cb.open()
		cb.logger.Warn("circuit re-opened, trial call failed", "error", err)
	case cb.state == StateClosed && cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold:
		cb.open()
		cb.logger.Warn("circuit opened",
			"consecutive_failures", cb.counts.ConsecutiveFailures,
			"threshold", cb.cfg.FailureThreshold,
			"error", err,
		)
	}
}

func (cb *CircuitBreaker) open() {
	cb.setState(StateOpen)
	cb.openedAt = cb.now()
}

// Reset forces the breaker closed and clears its counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.counts = Counts{}
	cb.trials = 0
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

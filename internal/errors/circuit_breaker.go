package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	// Trip when at least half of a sampled window fails.
	breakerFailureRate = 0.5
	breakerSampleFloor = 10
	breakerCooldown    = 30 * time.Second
	breakerProbeBudget = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	errProbesExhausted = errors.New("half-open probe budget exhausted")
)

// CircuitBreaker guards outbound Telegram API calls. When the API starts
// failing wholesale the breaker opens and sheds calls for a cooldown period,
// then lets a few probes through before closing again.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	total     int
	openedAt  time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: StateClosed}
}

// Call runs fn under the breaker's admission policy and records its outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < breakerCooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.reset()
	case StateHalfOpen:
		if cb.total >= breakerProbeBudget {
			return errProbesExhausted
		}
	}

	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.total++
	if ok {
		cb.successes++
	} else {
		cb.failures++
	}

	switch cb.state {
	case StateHalfOpen:
		if !ok {
			cb.trip()
		} else if cb.successes >= breakerProbeBudget {
			cb.state = StateClosed
			cb.reset()
		}
	case StateClosed:
		if !ok && cb.total >= breakerSampleFloor &&
			float64(cb.failures)/float64(cb.total) >= breakerFailureRate {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.reset()
}

func (cb *CircuitBreaker) reset() {
	cb.failures = 0
	cb.successes = 0
	cb.total = 0
}

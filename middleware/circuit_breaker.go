package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shrek82/torm/core"
)

var ErrCircuitOpen = errors.New("torm: circuit breaker is open")

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
	default:
		return "half-open"
	}
}

// CircuitBreakerMiddleware stops sending statements to the store after
// Threshold consecutive failures. After ResetTimeout one trial statement is
// let through; its outcome closes or reopens the circuit.
type CircuitBreakerMiddleware struct {
	Threshold    int           // Number of failures before opening
	ResetTimeout time.Duration // Time to wait before half-open

	mu             sync.Mutex
	state          State
	failures       int
	lastFailure    time.Time
	halfOpenPassed bool
	now            func() time.Time
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

// State returns the current circuit state.
func (m *CircuitBreakerMiddleware) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreakerMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.Result, error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if m.now().Sub(m.lastFailure) <= m.ResetTimeout {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.state = StateHalfOpen
		m.halfOpenPassed = true
	case StateHalfOpen:
		if m.halfOpenPassed {
			// only the trial statement passes until it reports back
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.halfOpenPassed = true
	}
	m.mu.Unlock()

	res, err := next(ctx, stmt)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}

	return res, err
}

func (m *CircuitBreakerMiddleware) recordFailure() {
	m.failures++
	m.lastFailure = m.now()

	switch m.state {
	case StateClosed:
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	case StateHalfOpen:
		m.state = StateOpen
		m.halfOpenPassed = false
	}
}

// recordSuccess resets the count so that only consecutive failures open the circuit.
func (m *CircuitBreakerMiddleware) recordSuccess() {
	m.failures = 0
	if m.state == StateHalfOpen {
		m.state = StateClosed
		m.halfOpenPassed = false
	}
}

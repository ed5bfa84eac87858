package resilience

import (
	"errors"
	"sync"
	"time"

	"voice-beyond/companion/pkg/logger"
)

// ErrCircuitOpen is returned by Execute while the breaker short-circuits calls.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed means the circuit is closed and requests are allowed to pass through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen means the circuit is open and requests are being short-circuited
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen means the circuit is allowing a limited number of test requests
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		RetryTimeout:     30 * time.Second,
	}
}

// Snapshot is a point-in-time view of the breaker counters.
type Snapshot struct {
	Name            string              `json:"name"`
	State           CircuitBreakerState `json:"state"`
	TotalRequests   uint64              `json:"total_requests"`
	TotalFailures   uint64              `json:"total_failures"`
	TotalSuccesses  uint64              `json:"total_successes"`
	Rejected        uint64              `json:"rejected"`
	OpenCount       uint64              `json:"open_count"`
	LastFailureTime time.Time           `json:"last_failure_time"`
}

// CircuitBreaker implements the Circuit Breaker pattern
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	log   *logger.Logger
	now   func() time.Time
	mutex sync.Mutex

	state           CircuitBreakerState
	failureCount    uint
	successCount    uint
	nextAttemptTime time.Time
	stats           Snapshot
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		cfg:   config,
		log:   log,
		now:   time.Now,
		state: StateClosed,
		stats: Snapshot{Name: config.Name},
	}
}

// Execute runs fn unless the circuit is open, and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		cb.log.Debug("circuit breaker rejected call", "name", cb.cfg.Name)
		return ErrCircuitOpen
	}

	start := cb.now()
	err := fn()
	if err != nil {
		cb.recordFailure()
		cb.log.Warn("circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", cb.now().Sub(start).String(),
		)
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttemptTime) {
			cb.stats.Rejected++
			return false
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.log.Info("circuit breaker half-open", "name", cb.cfg.Name)
	case StateHalfOpen:
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.stats.Rejected++
			return false
		}
	}

	cb.stats.TotalRequests++
	return true
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalSuccesses++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.log.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalFailures++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

// open trips the breaker. Caller holds the lock.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.stats.OpenCount++
	cb.nextAttemptTime = cb.now().Add(cb.cfg.RetryTimeout)

	cb.log.Info("circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failureCount,
		"next_attempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Snapshot returns the current counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	s := cb.stats
	s.State = cb.state
	return s
}

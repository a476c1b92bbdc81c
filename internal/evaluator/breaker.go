package evaluator

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned without calling the service while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker state.
type CircuitState int32

const (
	// StateClosed lets calls through.
	StateClosed CircuitState = iota
	// StateOpen rejects calls until the open timeout elapses.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// BreakerConfig configures the circuit breaker guarding the scoring service.
type BreakerConfig struct {
	// FailureThreshold consecutive failed calls open the circuit.
	FailureThreshold int `json:"failure_threshold" validate:"min=0"`
	// SuccessThreshold successful probes close it again.
	SuccessThreshold int `json:"success_threshold" validate:"min=0"`
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration `json:"open_timeout" validate:"min=0"`
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
}

// breaker is a consecutive-failure circuit breaker. State changes use CAS so
// concurrent criterion calls never block on it.
type breaker struct {
	state    atomic.Int32
	failures atomic.Int32
	probes   atomic.Int32 // successful probes while half-open
	probing  atomic.Bool
	openedAt atomic.Int64

	failureThreshold int32
	successThreshold int32
	openTimeout      time.Duration

	now    func() time.Time
	logger *slog.Logger
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	return &breaker{
		failureThreshold: int32(cfg.FailureThreshold),
		successThreshold: int32(cfg.SuccessThreshold),
		openTimeout:      cfg.OpenTimeout,
		now:              time.Now,
		logger:           logger,
	}
}

// State returns the current state.
func (b *breaker) State() CircuitState { return CircuitState(b.state.Load()) }

// allow reports whether a call may proceed. probe is true when the call is
// the half-open probe; its outcome must be reported with record.
func (b *breaker) allow() (probe bool, err error) {
	for {
		switch st := b.State(); st {
		case StateClosed:
			return false, nil
		case StateOpen:
			opened := time.Unix(0, b.openedAt.Load())
			if b.now().Sub(opened) < b.openTimeout {
				return false, ErrCircuitOpen
			}
			b.transition(StateOpen, StateHalfOpen)
		case StateHalfOpen:
			if b.probing.CompareAndSwap(false, true) {
				return true, nil
			}
			return false, ErrCircuitOpen
		}
	}
}

// record reports a call outcome.
func (b *breaker) record(probe, ok bool) {
	if probe {
		defer b.probing.Store(false)
	}
	switch b.State() {
	case StateClosed:
		if ok {
			b.failures.Store(0)
			return
		}
		if b.failures.Add(1) >= b.failureThreshold {
			b.transition(StateClosed, StateOpen)
		}
	case StateHalfOpen:
		if !probe {
			return
		}
		if !ok {
			b.transition(StateHalfOpen, StateOpen)
			return
		}
		if b.probes.Add(1) >= b.successThreshold {
			b.transition(StateHalfOpen, StateClosed)
		}
	}
}

// release frees a probe slot without counting the call either way.
func (b *breaker) release(probe bool) {
	if probe {
		b.probing.Store(false)
	}
}

// transition moves from one state to another. openedAt is written before the
// state flips so any caller that observes StateOpen also sees its timestamp.
func (b *breaker) transition(from, to CircuitState) {
	if to == StateOpen {
		b.openedAt.Store(b.now().UnixNano())
	}
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return
	}
	b.failures.Store(0)
	b.probes.Store(0)
	b.logger.Info("circuit breaker state transition",
		"from", from.String(),
		"to", to.String())
}

// Package breaker provides per-component circuit breaking: after a
// configurable run of consecutive failures a component trips open and
// stops being dispatched to until a cooldown elapses, then probes a
// single half-open request before fully closing again.
package breaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config controls trip and cooldown behavior, shared by every component
// breaker in the set.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold uint32
	// ResetTimeout is how long the breaker stays open before allowing a
	// half-open probe.
	ResetTimeout time.Duration
	// HalfOpenMaxRequests bounds how many probes run concurrently while
	// half-open.
	HalfOpenMaxRequests uint32
}

// DefaultConfig matches the thresholds named in the component design:
// five consecutive failures trips, a minute of cooldown follows.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		ResetTimeout:        time.Minute,
		HalfOpenMaxRequests: 1,
	}
}

// State mirrors gobreaker's three-state model.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Counts summarizes a single component breaker's recent activity.
type Counts struct {
	State               State
	ConsecutiveFailures uint32
	TotalSuccesses      uint32
	TotalFailures       uint32
}

// Set lazily creates one two-step circuit breaker per named component
// and exposes the allow/record interface the scheduler and green branch
// manager use to skip components that are currently failing.
type Set struct {
	cfg      Config
	mu       sync.Mutex
	breakers map[string]*gobreaker.TwoStepCircuitBreaker[any]
}

// NewSet creates a breaker set using cfg for every component breaker it
// lazily constructs.
func NewSet(cfg Config) *Set {
	return &Set{cfg: cfg, breakers: make(map[string]*gobreaker.TwoStepCircuitBreaker[any])}
}

func (s *Set) breakerFor(component string) *gobreaker.TwoStepCircuitBreaker[any] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[component]; ok {
		return b
	}

	b := gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		Name:        component,
		MaxRequests: s.cfg.HalfOpenMaxRequests,
		Timeout:     s.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.cfg.FailureThreshold
		},
	})
	s.breakers[component] = b
	return b
}

// Allow reports whether component may be dispatched to right now, and
// returns a record function the caller must invoke exactly once with the
// outcome of the attempt it was allowed to make. A nil record function
// is returned when allow is false.
func (s *Set) Allow(component string) (allowed bool, record func(success bool)) {
	done, err := s.breakerFor(component).Allow()
	if err != nil {
		return false, nil
	}
	return true, done
}

// Summary returns the current counts for every component that has been
// seen by this set.
func (s *Set) Summary() map[string]Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Counts, len(s.breakers))
	for name, b := range s.breakers {
		c := b.Counts()
		out[name] = Counts{
			State:               stateOf(b.State()),
			ConsecutiveFailures: c.ConsecutiveFailures,
			TotalSuccesses:      c.TotalSuccesses,
			TotalFailures:       c.TotalFailures,
		}
	}
	return out
}

func stateOf(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

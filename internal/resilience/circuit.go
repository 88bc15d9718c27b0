// Package resilience provides circuit breaker and retry patterns for external service calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures — requests are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the cumulative failure count at which the circuit
	// opens. Default: 5.
	FailureThreshold int

	// CoolDown is how long the circuit stays open before the next observation
	// moves it to half-open. Default: 5m.
	CoolDown time.Duration

	// ShouldTrip optionally overrides which errors count as failures. If nil,
	// every non-nil error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(component string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		CoolDown:         5 * time.Minute,
	}
}

// CircuitBreaker is a failure-counting state machine for a single component.
// The failure count accumulates until a success or a manual reset clears it;
// the circuit opens once the count reaches the threshold.
type CircuitBreaker struct {
	component string
	cfg       CircuitBreakerConfig

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	lastFailure  time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker for the named component.
func NewCircuitBreaker(component string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 5 * time.Minute
	}
	return &CircuitBreaker{
		component: component,
		cfg:       cfg,
		state:     CircuitClosed,
		nowFunc:   time.Now,
	}
}

// Component returns the component name this breaker guards.
func (cb *CircuitBreaker) Component() string { return cb.component }

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen if the
// circuit is open and the cool-down has not elapsed.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.recordResult(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allowRequest(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	cb.recordResult(err)
	return val, err
}

// RecordFailure increments the failure count and opens the circuit at
// threshold. In half-open state any failure reopens the circuit. Returns the
// resulting state.
func (cb *CircuitBreaker) RecordFailure() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.observeCoolDown()

	cb.failureCount++
	cb.lastFailure = cb.nowFunc()

	switch cb.state {
	case CircuitClosed:
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
	return cb.state
}

// RecordSuccess clears the failure count. A half-open circuit closes.
func (cb *CircuitBreaker) RecordSuccess() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.observeCoolDown()

	cb.failureCount = 0
	if cb.state == CircuitHalfOpen {
		cb.transition(CircuitClosed)
	}
	return cb.state
}

// State returns the current circuit state, applying the open→half-open
// transition if the cool-down has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.observeCoolDown()
	return cb.state
}

// FailureCount returns the current cumulative failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset forces the circuit back to closed state and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.failureCount = 0
	if old != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.component, old, CircuitClosed)
	}
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.observeCoolDown()

	if cb.state == CircuitOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) recordResult(err error) {
	shouldTrip := cb.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}
	if err == nil || !shouldTrip(err) {
		cb.RecordSuccess()
		return
	}
	cb.RecordFailure()
}

// observeCoolDown applies the open→half-open transition. Callers must hold mu.
func (cb *CircuitBreaker) observeCoolDown() {
	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.lastFailure) >= cb.cfg.CoolDown {
		cb.transition(CircuitHalfOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.component, from, to)
	}
}

// BreakerStatus is a point-in-time view of one breaker.
type BreakerStatus struct {
	Component    string       `json:"component"`
	State        CircuitState `json:"-"`
	StateName    string       `json:"state"`
	FailureCount int          `json:"failure_count"`
	LastFailure  time.Time    `json:"last_failure,omitempty"`
}

// Registry manages circuit breakers keyed by component name. It is shared
// across concurrent campaigns; all access is synchronized.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewRegistry creates a registry of per-component circuit breakers.
func NewRegistry(cfg CircuitBreakerConfig) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for the named component, creating one if needed.
func (r *Registry) Get(component string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[component]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[component]; ok {
		return cb
	}
	cb = NewCircuitBreaker(component, r.cfg)
	r.breakers[component] = cb
	return cb
}

// Reset force-closes the named breaker. Returns false if no breaker exists
// for the component.
func (r *Registry) Reset(component string) bool {
	r.mu.RLock()
	cb, ok := r.breakers[component]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// Snapshot returns the status of every registered breaker.
func (r *Registry) Snapshot() map[string]BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		state := cb.State()
		cb.mu.Lock()
		out[name] = BreakerStatus{
			Component:    name,
			State:        state,
			StateName:    state.String(),
			FailureCount: cb.failureCount,
			LastFailure:  cb.lastFailure,
		}
		cb.mu.Unlock()
	}
	return out
}

// Open returns the names of breakers currently not closed.
func (r *Registry) Open() []string {
	var out []string
	for name, st := range r.Snapshot() {
		if st.State != CircuitClosed {
			out = append(out, name)
		}
	}
	return out
}

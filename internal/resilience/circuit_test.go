package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedState_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("waha-send", DefaultCircuitBreakerConfig())

	var calls int
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 5,
		CoolDown:         5 * time.Minute,
	}
	cb := NewCircuitBreaker("waha-send", cfg)

	// Four failures keep it closed, the fifth opens it.
	for i := 0; i < 4; i++ {
		if st := cb.RecordFailure(); st != CircuitClosed {
			t.Fatalf("failure %d: expected closed, got %s", i+1, st)
		}
	}
	if st := cb.RecordFailure(); st != CircuitOpen {
		t.Errorf("expected open on 5th failure, got %s", st)
	}

	// Next call should be rejected immediately.
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessClearsCount(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 3,
		CoolDown:         1 * time.Minute,
	}
	cb := NewCircuitBreaker("sheets", cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.FailureCount(); got != 2 {
		t.Errorf("expected 2 failures, got %d", got)
	}

	cb.RecordSuccess()
	if got := cb.FailureCount(); got != 0 {
		t.Errorf("expected 0 failures after success, got %d", got)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterCoolDown(t *testing.T) {
	now := time.Now()
	cfg := CircuitBreakerConfig{
		FailureThreshold: 2,
		CoolDown:         5 * time.Minute,
	}
	cb := NewCircuitBreaker("waha-send", cfg)
	cb.nowFunc = func() time.Time { return now }

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	// Advance past the cool-down: the next observation moves to half-open.
	cb.nowFunc = func() time.Time { return now.Add(6 * time.Minute) }

	if cb.State() != CircuitHalfOpen {
		t.Errorf("expected half-open state after cool-down, got %s", cb.State())
	}

	// Successful probe closes the circuit.
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailure_Reopens(t *testing.T) {
	now := time.Now()
	cfg := CircuitBreakerConfig{
		FailureThreshold: 2,
		CoolDown:         5 * time.Minute,
	}
	cb := NewCircuitBreaker("waha-send", cfg)
	cb.nowFunc = func() time.Time { return now }

	cb.RecordFailure()
	cb.RecordFailure()

	cb.nowFunc = func() time.Time { return now.Add(6 * time.Minute) }
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	if st := cb.RecordFailure(); st != CircuitOpen {
		t.Errorf("expected open after half-open failure, got %s", st)
	}
	if got := cb.FailureCount(); got != 3 {
		t.Errorf("expected failure count retained and incremented to 3, got %d", got)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []struct{ from, to CircuitState }
	cfg := CircuitBreakerConfig{
		FailureThreshold: 2,
		CoolDown:         1 * time.Minute,
		OnStateChange: func(_ string, from, to CircuitState) {
			transitions = append(transitions, struct{ from, to CircuitState }{from, to})
		},
	}
	cb := NewCircuitBreaker("waha-send", cfg)

	cb.RecordFailure()
	cb.RecordFailure()

	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	if transitions[0].from != CircuitClosed || transitions[0].to != CircuitOpen {
		t.Errorf("expected closed→open, got %s→%s", transitions[0].from, transitions[0].to)
	}
}

func TestCircuitBreaker_ShouldTrip(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 2,
		CoolDown:         1 * time.Minute,
		ShouldTrip: func(err error) bool {
			return err.Error() == "tripworthy"
		},
	}
	cb := NewCircuitBreaker("sheets", cfg)

	// These shouldn't count toward the threshold.
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("non-tripworthy")
		})
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed (non-tripworthy errors), got %s", cb.State())
	}

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("tripworthy")
		})
	}
	if cb.State() != CircuitOpen {
		t.Errorf("expected open after tripworthy errors, got %s", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 2,
		CoolDown:         1 * time.Hour,
	}
	cb := NewCircuitBreaker("waha-send", cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after reset, got %s", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Errorf("expected count cleared, got %d", cb.FailureCount())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1000,
		CoolDown:         1 * time.Minute,
	}
	cb := NewCircuitBreaker("waha-send", cfg)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(_ context.Context) error {
				if i%2 == 0 {
					return errors.New("fail")
				}
				return nil
			})
		}()
	}
	wg.Wait()
	// Just verifying no race/panic.
}

func TestExecuteVal_CircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("waha-send", DefaultCircuitBreakerConfig())

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestExecuteVal_CircuitOpen(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		CoolDown:         1 * time.Hour,
	}
	cb := NewCircuitBreaker("waha-send", cfg)
	cb.RecordFailure()

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if val != 0 {
		t.Errorf("expected zero value, got %d", val)
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry(DefaultCircuitBreakerConfig())

	cb1 := r.Get("waha-send")
	cb2 := r.Get("waha-send")
	cb3 := r.Get("sheets")

	if cb1 != cb2 {
		t.Error("expected same breaker for same component")
	}
	if cb1 == cb3 {
		t.Error("expected different breakers for different components")
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry(CircuitBreakerConfig{FailureThreshold: 1, CoolDown: 1 * time.Hour})

	r.Get("waha-send").RecordFailure()
	if !r.Reset("waha-send") {
		t.Error("expected reset to report true for existing breaker")
	}
	if r.Get("waha-send").State() != CircuitClosed {
		t.Error("expected breaker closed after reset")
	}
	if r.Reset("never-seen") {
		t.Error("expected reset to report false for unknown component")
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry(CircuitBreakerConfig{FailureThreshold: 1, CoolDown: 1 * time.Hour})

	r.Get("waha-send").RecordFailure()
	_ = r.Get("sheets")

	snap := r.Snapshot()
	if snap["waha-send"].State != CircuitOpen {
		t.Errorf("expected waha-send=open, got %s", snap["waha-send"].StateName)
	}
	if snap["sheets"].State != CircuitClosed {
		t.Errorf("expected sheets=closed, got %s", snap["sheets"].StateName)
	}

	open := r.Open()
	if len(open) != 1 || open[0] != "waha-send" {
		t.Errorf("expected only waha-send open, got %v", open)
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

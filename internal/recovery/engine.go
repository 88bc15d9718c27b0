package recovery

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/resilience"
)

const (
	// patternWindow is the trailing window for frequency analysis.
	patternWindow = time.Hour
	// patternThreshold is how many same (type, category) errors within the
	// window escalate a Retry strategy to CircuitBreaker.
	patternThreshold = 5
	// maxBackoff caps exponential backoff sleeps.
	maxBackoff = 60 * time.Second
	// historyLimit bounds the in-memory recovery history.
	historyLimit = 1000
)

// Callback receives every handled error with its disposition.
type Callback func(rec ErrorRecord, d Disposition)

type historyEntry struct {
	ErrorID   string    `json:"error_id"`
	Strategy  Strategy  `json:"strategy"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine classifies errors, picks recovery strategies, and executes them.
// It is shared across concurrent campaigns; all state is mutex-guarded.
type Engine struct {
	mu        sync.Mutex
	records   map[string]*ErrorRecord
	patterns  map[string][]time.Time
	history   []historyEntry
	callbacks []Callback

	breakers *resilience.Registry

	nowFunc func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a recovery engine backed by the given breaker registry.
func NewEngine(breakers *resilience.Registry) *Engine {
	if breakers == nil {
		breakers = resilience.NewRegistry(resilience.DefaultCircuitBreakerConfig())
	}
	return &Engine{
		records:  make(map[string]*ErrorRecord),
		patterns: make(map[string][]time.Time),
		breakers: breakers,
		nowFunc:  time.Now,
		sleep:    sleepCtx,
	}
}

// Breakers exposes the shared circuit breaker registry.
func (e *Engine) Breakers() *resilience.Registry { return e.breakers }

// AddCallback registers a callback invoked after every handled error.
func (e *Engine) AddCallback(cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// ResetCircuitBreaker force-closes the named breaker. Returns false if the
// component has no breaker.
func (e *Engine) ResetCircuitBreaker(component string) bool {
	ok := e.breakers.Reset(component)
	if ok {
		zap.L().Info("circuit breaker reset", zap.String("component", component))
	}
	return ok
}

// HandleError converts a raw failure into a classified record, selects and
// executes a recovery strategy, and returns the disposition. It never returns
// an error: handler failures produce a structured failed disposition.
func (e *Engine) HandleError(ctx context.Context, err error, ectx ErrorContext) Disposition {
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = e.nowFunc()
	}

	rec := &ErrorRecord{
		ErrorID:      "err_" + uuid.NewString(),
		ErrorType:    errorType(err),
		ErrorMessage: err.Error(),
		Severity:     classifySeverity(err, ectx),
		Category:     classifyCategory(err),
		Context:      ectx,
	}
	rec.RecoveryStrategy = selectStrategy(rec.Severity, rec.Category)

	zap.L().Error("error occurred",
		zap.String("error_id", rec.ErrorID),
		zap.String("error_type", rec.ErrorType),
		zap.String("severity", string(rec.Severity)),
		zap.String("category", string(rec.Category)),
		zap.String("campaign_id", ectx.CampaignID),
		zap.String("workflow_id", ectx.WorkflowID),
		zap.Error(err),
	)

	e.mu.Lock()
	e.records[rec.ErrorID] = rec
	e.analyzePatternLocked(rec)
	callbacks := make([]Callback, len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.mu.Unlock()

	// Every component-tagged failure counts against that component's breaker,
	// whatever strategy is chosen. The breaker opens at its threshold.
	if rec.Context.Component != "" {
		e.breakers.Get(rec.Context.Component).RecordFailure()
	}

	d := e.executeRecovery(ctx, rec)

	e.mu.Lock()
	rec.RecoveryAttempts++
	if d.RecoverySuccess {
		rec.RecoverySuccess = true
		rec.ResolvedAt = e.nowFunc()
	}
	e.history = append(e.history, historyEntry{
		ErrorID:   rec.ErrorID,
		Strategy:  rec.RecoveryStrategy,
		Success:   d.RecoverySuccess,
		Timestamp: e.nowFunc(),
	})
	if len(e.history) > historyLimit {
		e.history = e.history[len(e.history)-historyLimit:]
	}
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb(*rec, d)
	}

	return d
}

// analyzePatternLocked escalates Retry to CircuitBreaker when the same
// (type, category) pair repeats too often. Callers must hold mu.
func (e *Engine) analyzePatternLocked(rec *ErrorRecord) {
	key := rec.ErrorType + "_" + string(rec.Category)
	now := rec.Context.Timestamp

	recent := e.patterns[key][:0]
	for _, ts := range e.patterns[key] {
		if now.Sub(ts) < patternWindow {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	e.patterns[key] = recent

	if len(recent) >= patternThreshold {
		zap.L().Warn("error pattern detected",
			zap.String("pattern", key),
			zap.Int("count", len(recent)),
		)
		// A high-frequency pattern means retrying is futile; cut the
		// component off instead.
		if rec.RecoveryStrategy == StrategyRetry || rec.RecoveryStrategy == StrategyRetryWithBackoff {
			rec.RecoveryStrategy = StrategyCircuitBreaker
		}
	}
}

func (e *Engine) executeRecovery(ctx context.Context, rec *ErrorRecord) Disposition {
	d := Disposition{
		ErrorID:  rec.ErrorID,
		Severity: rec.Severity,
		Category: rec.Category,
		Strategy: rec.RecoveryStrategy,
	}

	switch rec.RecoveryStrategy {
	case StrategyRetry:
		e.handleRetry(ctx, &d)
	case StrategyRetryWithBackoff:
		e.handleBackoffRetry(ctx, rec, &d)
	case StrategyFallback:
		e.handleFallback(rec, &d)
	case StrategyCircuitBreaker:
		e.handleCircuitBreaker(rec, &d)
	case StrategyGracefulDegradation:
		e.handleGracefulDegradation(rec, &d)
	case StrategyEscalation:
		d.Action = "escalate"
		d.NextSteps = []string{"Notify operator", "Verify credentials and access"}
		d.Recommendations = []string{"Rotate credentials if compromised"}
	case StrategyManualIntervention:
		d.Action = "manual_intervention"
		d.NextSteps = []string{"Halt automated recovery", "Page on-call operator"}
	case StrategyIgnore:
		d.Action = "ignore"
		d.RecoverySuccess = true
	default:
		d.HandlerError = fmt.Sprintf("no recovery action defined for %s", rec.RecoveryStrategy)
	}
	return d
}

func (e *Engine) handleRetry(ctx context.Context, d *Disposition) {
	// Brief pause before signalling the caller to re-invoke.
	if err := e.sleep(ctx, time.Second); err != nil {
		d.HandlerError = err.Error()
		return
	}
	d.Action = "retry_operation"
	d.RecoverySuccess = true
	d.NextSteps = []string{"Re-execute the failed operation"}
	d.Recommendations = []string{"Monitor for repeated failures"}
}

func (e *Engine) handleBackoffRetry(ctx context.Context, rec *ErrorRecord, d *Disposition) {
	backoff := time.Duration(math.Pow(2, float64(rec.RecoveryAttempts))) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	d.Backoff = backoff

	if err := e.sleep(ctx, backoff); err != nil {
		d.HandlerError = err.Error()
		return
	}
	d.Action = "retry_with_backoff"
	d.RecoverySuccess = true
	d.NextSteps = []string{fmt.Sprintf("Retry after %s", backoff)}
	d.Recommendations = []string{"Monitor network stability", "Check service status"}
}

func (e *Engine) handleFallback(rec *ErrorRecord, d *Disposition) {
	fallbacks := map[Category]string{
		CategoryAPI:             "Switch to backup API endpoint",
		CategoryNetwork:         "Use alternative communication channel",
		CategoryDatabase:        "Use cached data temporarily",
		CategoryExternalService: "Switch to secondary service provider",
	}
	action, ok := fallbacks[rec.Category]
	if !ok {
		action = "Use alternative processing method"
	}

	d.Action = "fallback_method"
	d.RecoverySuccess = true
	d.NextSteps = []string{action, "Monitor primary system recovery"}
	d.Recommendations = []string{"Investigate root cause", "Prepare for failback"}
}

func (e *Engine) handleCircuitBreaker(rec *ErrorRecord, d *Disposition) {
	component := rec.Context.Component
	if component == "" {
		component = "unknown_component"
	}

	// The failure was already counted against the breaker in HandleError;
	// here we report the resulting state.
	cb := e.breakers.Get(component)
	state := cb.State()
	d.CircuitState = state.String()
	d.RecoverySuccess = true

	if state == resilience.CircuitOpen {
		d.Action = "circuit_breaker_open"
		d.NextSteps = []string{
			fmt.Sprintf("Circuit breaker opened for %s", component),
			"Redirect traffic to alternatives",
			"Wait for cool-down before retry",
		}
		d.Recommendations = []string{
			"Investigate service issues",
			"Monitor service recovery",
			"Prepare manual intervention if needed",
		}
		return
	}

	d.Action = "circuit_breaker_count"
	d.NextSteps = []string{"Continue monitoring", "Prepare for circuit breaker activation"}
	d.Recommendations = []string{"Monitor failure rate closely"}
}

func (e *Engine) handleGracefulDegradation(rec *ErrorRecord, d *Disposition) {
	strategies := map[Category]string{
		CategoryAPI:             "Reduce API call frequency",
		CategoryDatabase:        "Use read-only operations",
		CategoryNetwork:         "Enable offline mode",
		CategoryExternalService: "Disable non-essential features",
	}
	strategy, ok := strategies[rec.Category]
	if !ok {
		strategy = "Reduce system functionality"
	}

	d.Action = "graceful_degradation"
	d.RecoverySuccess = true
	d.NextSteps = []string{strategy, "Maintain core functionality", "Monitor for service recovery"}
	d.Recommendations = []string{"Notify users of limited functionality", "Prepare for full service restoration"}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

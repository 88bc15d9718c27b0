package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ValidationError marks a failure caused by bad input data rather than an
// infrastructure fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// FatalError marks a failure that cannot be recovered automatically and must
// propagate to the orchestrating layer.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// classifyCategory applies the category rules in fixed priority order;
// the first match wins.
func classifyCategory(err error) Category {
	msg := strings.ToLower(err.Error())

	switch {
	case isConnectionError(err) || strings.Contains(msg, "connection") || strings.Contains(msg, "timeout"):
		return CategoryNetwork
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		return CategoryAuthentication
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return CategoryRateLimiting
	case strings.Contains(msg, "database") || strings.Contains(msg, "sql"):
		return CategoryDatabase
	case strings.Contains(msg, "api") || strings.Contains(msg, "http"):
		return CategoryAPI
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return CategoryDataValidation
		}
		return CategorySystem
	}
}

// classifySeverity grades the error. Connection failures tied to an active
// campaign are critical; authentication failures are high; API/HTTP-flavored
// messages and everything else default to medium.
func classifySeverity(err error, ectx ErrorContext) Severity {
	var fe *FatalError
	if errors.As(err, &fe) {
		return SeverityFatal
	}

	if isConnectionError(err) && ectx.CampaignID != "" {
		return SeverityCritical
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized") {
		return SeverityHigh
	}
	if strings.Contains(msg, "api") || strings.Contains(msg, "http") {
		return SeverityMedium
	}
	return SeverityMedium
}

// selectStrategy maps a classified record to its recovery strategy.
func selectStrategy(severity Severity, category Category) Strategy {
	if severity == SeverityFatal {
		return StrategyManualIntervention
	}
	switch category {
	case CategoryNetwork:
		return StrategyRetryWithBackoff
	case CategoryRateLimiting:
		return StrategyCircuitBreaker
	case CategoryAuthentication:
		return StrategyEscalation
	case CategoryAPI:
		return StrategyFallback
	case CategoryDatabase:
		return StrategyRetryWithBackoff
	default:
		return StrategyRetry
	}
}

// errorType derives a stable type name for pattern grouping from the error
// chain's outermost concrete type.
func errorType(err error) string {
	switch {
	case isConnectionError(err):
		return "ConnectionError"
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return "ValidationError"
		}
		var fe *FatalError
		if errors.As(err, &fe) {
			return "FatalError"
		}
		return fmt.Sprintf("%T", err)
	}
}

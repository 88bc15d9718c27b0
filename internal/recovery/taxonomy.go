// Package recovery classifies failures and selects recovery strategies for
// campaign operations. Every raised failure is converted to an ErrorRecord,
// handed to the Engine exactly once, and always produces a Disposition.
package recovery

// Severity grades how damaging an error is to a running campaign.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityFatal    Severity = "fatal"
)

// Category is the failure taxonomy.
type Category string

const (
	CategoryNetwork         Category = "network"
	CategoryAPI             Category = "api"
	CategoryDatabase        Category = "database"
	CategoryAuthentication  Category = "authentication"
	CategoryRateLimiting    Category = "rate_limiting"
	CategoryDataValidation  Category = "data_validation"
	CategoryBusinessLogic   Category = "business_logic"
	CategorySystem          Category = "system"
	CategoryExternalService Category = "external_service"
)

// Strategy is the chosen remediation approach for a classified error.
type Strategy string

const (
	StrategyRetry               Strategy = "retry"
	StrategyRetryWithBackoff    Strategy = "retry_with_backoff"
	StrategyFallback            Strategy = "fallback"
	StrategyCircuitBreaker      Strategy = "circuit_breaker"
	StrategyGracefulDegradation Strategy = "graceful_degradation"
	StrategyEscalation          Strategy = "escalation"
	StrategyManualIntervention  Strategy = "manual_intervention"
	StrategyIgnore              Strategy = "ignore"
)

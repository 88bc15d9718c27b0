package recovery

import "time"

// ErrorContext identifies where in the system an error was raised.
type ErrorContext struct {
	Timestamp  time.Time      `json:"timestamp"`
	CampaignID string         `json:"campaign_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	StepID     string         `json:"step_id,omitempty"`
	Component  string         `json:"component,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ErrorRecord is the classified form of one handled failure.
type ErrorRecord struct {
	ErrorID          string       `json:"error_id"`
	ErrorType        string       `json:"error_type"`
	ErrorMessage     string       `json:"error_message"`
	Severity         Severity     `json:"severity"`
	Category         Category     `json:"category"`
	Context          ErrorContext `json:"context"`
	RecoveryStrategy Strategy     `json:"recovery_strategy"`
	RecoveryAttempts int          `json:"recovery_attempts"`
	RecoverySuccess  bool         `json:"recovery_success"`
	ResolvedAt       time.Time    `json:"resolved_at,omitempty"`
}

// Disposition is what the Engine tells the caller to do about an error.
// Handlers are side-effect-light: apart from circuit breaker mutation they
// report what to do, they do not perform the downstream action.
type Disposition struct {
	ErrorID         string        `json:"error_id"`
	Severity        Severity      `json:"severity"`
	Category        Category      `json:"category"`
	Strategy        Strategy      `json:"recovery_strategy"`
	RecoverySuccess bool          `json:"recovery_success"`
	Action          string        `json:"action,omitempty"`
	CircuitState    string        `json:"circuit_state,omitempty"`
	Backoff         time.Duration `json:"-"`
	NextSteps       []string      `json:"next_steps,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	HandlerError    string        `json:"handler_error,omitempty"`
}

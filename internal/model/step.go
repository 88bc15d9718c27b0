package model

import "time"

// Stage is the functional phase a thinking step belongs to.
type Stage string

const (
	StageAnalysis     Stage = "analysis"
	StagePlanning     Stage = "planning"
	StageSegmentation Stage = "segmentation"
	StageOptimization Stage = "optimization"
	StageExecution    Stage = "execution"
	StageMonitoring   Stage = "monitoring"
	StageEvaluation   Stage = "evaluation"
	StageAdaptation   Stage = "adaptation"
)

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageAnalysis, StagePlanning, StageSegmentation, StageOptimization,
		StageExecution, StageMonitoring, StageEvaluation, StageAdaptation:
		return true
	}
	return false
}

// Priority orders runnable steps. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// StepStatus is the lifecycle state of a single thinking step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// ThinkingStep is one node in a pattern's dependency DAG.
// A step may enter in_progress only when every dependency is completed.
type ThinkingStep struct {
	ID                string         `json:"id"`
	Stage             Stage          `json:"stage"`
	Description       string         `json:"description"`
	Inputs            []string       `json:"inputs"`
	Outputs           []string       `json:"outputs"`
	DependsOn         []string       `json:"depends_on,omitempty"`
	Priority          Priority       `json:"priority"`
	Critical          bool           `json:"critical"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	ActualDuration    time.Duration  `json:"actual_duration,omitempty"`
	Status            StepStatus     `json:"status"`
	Adjustments       map[string]any `json:"adjustments,omitempty"`
	Result            map[string]any `json:"result,omitempty"`
	Errors            []string       `json:"errors,omitempty"`
	StartedAt         time.Time      `json:"started_at,omitempty"`
	CompletedAt       time.Time      `json:"completed_at,omitempty"`
}

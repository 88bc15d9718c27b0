package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
	CampaignStopped   CampaignStatus = "stopped"
)

// TimeConstraints bounds a campaign run.
type TimeConstraints struct {
	StartAt     time.Time `json:"start_at,omitempty"`
	Deadline    time.Time `json:"deadline,omitempty"`
	HorizonDays int       `json:"horizon_days,omitempty"`
}

// CampaignConfig is the inbound campaign-start request.
type CampaignConfig struct {
	CampaignID         string             `json:"campaign_id"`
	Name               string             `json:"name,omitempty"`
	TargetAudienceSize int                `json:"target_audience_size"`
	ROITarget          float64            `json:"roi_target"`
	BudgetLimit        float64            `json:"budget_limit"`
	TimeConstraints    TimeConstraints    `json:"time_constraints"`
	DataSources        map[string]string  `json:"data_sources,omitempty"`
	TargetMetrics      map[string]float64 `json:"target_metrics,omitempty"`
	Constraints        map[string]any     `json:"constraints,omitempty"`
}

// ThinkingContext is the immutable planning context a pattern is built from.
// Re-planning creates a new context rather than mutating an existing one.
type ThinkingContext struct {
	CampaignID         string             `json:"campaign_id"`
	TargetAudienceSize int                `json:"target_audience_size"`
	ROITarget          float64            `json:"roi_target"`
	BudgetLimit        float64            `json:"budget_limit"`
	TimeConstraints    TimeConstraints    `json:"time_constraints"`
	CurrentPerformance map[string]float64 `json:"current_performance,omitempty"`
	HistoricalData     []map[string]any   `json:"historical_data,omitempty"`
	ExternalFactors    map[string]any     `json:"external_factors,omitempty"`
}

// WorkflowType identifies the kind of automation workflow.
type WorkflowType string

const (
	WorkflowRosterProcessing        WorkflowType = "roster_processing"
	WorkflowUserSegmentation        WorkflowType = "user_segmentation"
	WorkflowMessageScheduling       WorkflowType = "message_scheduling"
	WorkflowROITracking             WorkflowType = "roi_tracking"
	WorkflowPerformanceOptimization WorkflowType = "performance_optimization"
	WorkflowErrorRecovery           WorkflowType = "error_recovery"
)

// WorkflowContext carries the identifiers and targets of one workflow run.
type WorkflowContext struct {
	WorkflowID    string             `json:"workflow_id"`
	WorkflowType  WorkflowType       `json:"workflow_type"`
	CampaignID    string             `json:"campaign_id"`
	DataSources   map[string]string  `json:"data_sources,omitempty"`
	TargetMetrics map[string]float64 `json:"target_metrics,omitempty"`
	Constraints   map[string]any     `json:"constraints,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Campaign is the persisted campaign record.
type Campaign struct {
	ID         string         `json:"id"`
	Config     CampaignConfig `json:"config"`
	Status     CampaignStatus `json:"status"`
	PatternID  string         `json:"pattern_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

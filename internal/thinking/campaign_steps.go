package thinking

import (
	"time"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

// CampaignPattern builds the WhatsApp campaign orchestration DAG for one
// planning context. Critical steps abort the whole pattern on failure.
func CampaignPattern(tc model.ThinkingContext) *model.ThinkingPattern {
	steps := []*model.ThinkingStep{
		{
			ID:                "analyze_audience_data",
			Stage:             model.StageAnalysis,
			Description:       "Analyze roster data and segment audience",
			Inputs:            []string{"roster_data", "historical_campaign_data"},
			Outputs:           []string{"audience_segments", "demographic_insights"},
			Priority:          model.PriorityCritical,
			Critical:          true,
			EstimatedDuration: 10 * time.Minute,
		},
		{
			ID:                "analyze_historical_performance",
			Stage:             model.StageAnalysis,
			Description:       "Analyze historical campaign performance patterns",
			Inputs:            []string{"historical_campaign_data", "conversion_data"},
			Outputs:           []string{"performance_patterns", "success_factors"},
			DependsOn:         []string{"analyze_audience_data"},
			Priority:          model.PriorityHigh,
			EstimatedDuration: 15 * time.Minute,
		},
		{
			ID:                "plan_segmentation_strategy",
			Stage:             model.StagePlanning,
			Description:       "Plan optimal audience segmentation strategy",
			Inputs:            []string{"audience_segments", "performance_patterns"},
			Outputs:           []string{"segmentation_plan", "targeting_criteria"},
			DependsOn:         []string{"analyze_audience_data", "analyze_historical_performance"},
			Priority:          model.PriorityCritical,
			Critical:          true,
			EstimatedDuration: 20 * time.Minute,
		},
		{
			ID:                "plan_message_sequences",
			Stage:             model.StagePlanning,
			Description:       "Plan message sequences and timing optimization",
			Inputs:            []string{"segmentation_plan", "audience_behavior_data"},
			Outputs:           []string{"message_sequences", "timing_strategy"},
			DependsOn:         []string{"plan_segmentation_strategy"},
			Priority:          model.PriorityHigh,
			EstimatedDuration: 30 * time.Minute,
		},
		{
			ID:                "execute_smart_segmentation",
			Stage:             model.StageSegmentation,
			Description:       "Execute intelligent audience segmentation",
			Inputs:            []string{"segmentation_plan", "audience_data"},
			Outputs:           []string{"segmented_audiences", "segment_priorities"},
			DependsOn:         []string{"plan_segmentation_strategy"},
			Priority:          model.PriorityCritical,
			Critical:          true,
			EstimatedDuration: 15 * time.Minute,
		},
		{
			ID:                "optimize_message_timing",
			Stage:             model.StageOptimization,
			Description:       "Optimize message timing based on audience behavior",
			Inputs:            []string{"timing_strategy", "audience_behavior_patterns"},
			Outputs:           []string{"optimized_schedule", "send_times"},
			DependsOn:         []string{"plan_message_sequences", "execute_smart_segmentation"},
			Priority:          model.PriorityHigh,
			EstimatedDuration: 25 * time.Minute,
		},
		{
			ID:                "optimize_message_content",
			Stage:             model.StageOptimization,
			Description:       "Optimize message content for each segment",
			Inputs:            []string{"message_sequences", "segment_preferences"},
			Outputs:           []string{"personalized_messages", "content_variants"},
			DependsOn:         []string{"execute_smart_segmentation"},
			Priority:          model.PriorityHigh,
			EstimatedDuration: 20 * time.Minute,
		},
		{
			ID:                "execute_campaign_launch",
			Stage:             model.StageExecution,
			Description:       "Execute coordinated campaign launch",
			Inputs:            []string{"optimized_schedule", "personalized_messages", "segmented_audiences"},
			Outputs:           []string{"campaign_status", "initial_metrics"},
			DependsOn:         []string{"optimize_message_timing", "optimize_message_content"},
			Priority:          model.PriorityCritical,
			Critical:          true,
			EstimatedDuration: time.Hour,
		},
		{
			ID:                "monitor_real_time_performance",
			Stage:             model.StageMonitoring,
			Description:       "Monitor real-time campaign performance",
			Inputs:            []string{"campaign_status", "live_metrics"},
			Outputs:           []string{"performance_alerts", "optimization_recommendations"},
			DependsOn:         []string{"execute_campaign_launch"},
			Priority:          model.PriorityCritical,
			Critical:          true,
			EstimatedDuration: 24 * time.Hour,
		},
		{
			ID:                "evaluate_roi_performance",
			Stage:             model.StageEvaluation,
			Description:       "Evaluate ROI and conversion performance",
			Inputs:            []string{"performance_metrics", "conversion_data"},
			Outputs:           []string{"roi_analysis", "performance_report"},
			DependsOn:         []string{"monitor_real_time_performance"},
			Priority:          model.PriorityHigh,
			EstimatedDuration: 30 * time.Minute,
		},
		{
			ID:                "adapt_strategy_realtime",
			Stage:             model.StageAdaptation,
			Description:       "Adapt strategy based on real-time performance",
			Inputs:            []string{"performance_alerts", "optimization_recommendations"},
			Outputs:           []string{"strategy_adjustments", "updated_parameters"},
			DependsOn:         []string{"evaluate_roi_performance"},
			Priority:          model.PriorityHigh,
			EstimatedDuration: 15 * time.Minute,
		},
	}

	for _, s := range steps {
		s.Status = model.StepPending
	}

	return &model.ThinkingPattern{
		Name:        "WhatsApp Campaign Orchestration",
		Description: "Sequential thinking pattern for WhatsApp automation campaigns",
		Steps:       steps,
		Context:     tc,
		SuccessCriteria: map[string]float64{
			"roi_achieved":         tc.ROITarget,
			"response_rate":        0.25,
			"conversion_rate":      0.15,
			"cost_per_acquisition": 50.0,
		},
		FailureConditions: []string{
			"response_rate < 0.05",
			"conversion_rate < 0.02",
			"budget_exceeded",
			"compliance_violation",
		},
		OptimizationTriggers: []string{
			"response_rate < 0.15",
			"cost_per_acquisition > 75",
			"campaign_halfway_underperforming",
		},
	}
}

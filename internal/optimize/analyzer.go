// Package optimize analyzes campaign performance and produces prioritized
// optimization recommendations.
package optimize

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/monitoring"
	"github.com/reengage-labs/campaign-cli/internal/roi"
)

// Analysis thresholds.
const (
	roiImmediateThreshold = 1500.0
	roiGrowthThreshold    = 2000.0
	responseRateThreshold = 0.15
	deliveryRateThreshold = 0.95
)

// Opportunity weights for the priority score.
const (
	weightImmediate = 10
	weightRisk      = 8
	weightStrategic = 6
	weightGrowth    = 4
	maxPriority     = 100.0
)

// Opportunity is one identified optimization opening.
type Opportunity struct {
	Action               string `json:"action"`
	Reason               string `json:"reason"`
	PotentialImpact      string `json:"potential_impact"`
	EstimatedImprovement string `json:"estimated_improvement,omitempty"`
	Urgency              string `json:"urgency,omitempty"`
	Timeline             string `json:"timeline,omitempty"`
}

// Opportunities groups openings by class.
type Opportunities struct {
	ImmediateActions      []Opportunity `json:"immediate_actions"`
	StrategicImprovements []Opportunity `json:"strategic_improvements"`
	RiskMitigation        []Opportunity `json:"risk_mitigation"`
	GrowthOpportunities   []Opportunity `json:"growth_opportunities"`
}

// Performance is the headline ROI picture at analysis time.
type Performance struct {
	ROIPercentage float64 `json:"roi_percentage"`
	TotalRevenue  float64 `json:"total_revenue"`
	NetProfit     float64 `json:"net_profit"`
}

// Analysis is the full optimization report for a campaign.
type Analysis struct {
	AnalyzedAt         time.Time     `json:"analysis_timestamp"`
	CampaignID         string        `json:"campaign_id"`
	CurrentPerformance Performance   `json:"current_performance"`
	Opportunities      Opportunities `json:"opportunities"`
	PriorityScore      float64       `json:"priority_score"`
	Recommendations    []string      `json:"recommended_next_steps"`
}

// Engine analyzes performance and implements optimization actions.
type Engine struct {
	calc    *roi.Calculator
	store   *monitoring.MetricStore
	alerter *monitoring.Alerter

	mu      sync.Mutex
	history []Result

	nowFunc func() time.Time
}

// NewEngine creates an optimization engine over the ROI calculator and
// metric store.
func NewEngine(calc *roi.Calculator, store *monitoring.MetricStore, alerter *monitoring.Alerter) *Engine {
	return &Engine{
		calc:    calc,
		store:   store,
		alerter: alerter,
		nowFunc: time.Now,
	}
}

// Analyze inspects the campaign's ROI and performance summary and returns
// classified opportunities with a priority score and sorted recommendations.
func (e *Engine) Analyze(campaignID string) Analysis {
	calc := e.calc.Calculate(campaignID)
	summary := monitoring.Summarize(e.store, e.alerter, campaignID, 24*time.Hour)

	var opp Opportunities

	if calc.ROIPercentage < roiImmediateThreshold {
		opp.ImmediateActions = append(opp.ImmediateActions, Opportunity{
			Action:               "improve_conversion_rate",
			Reason:               fmt.Sprintf("Current ROI %.1f%% below target", calc.ROIPercentage),
			PotentialImpact:      "high",
			EstimatedImprovement: "15-25% ROI increase",
		})
	}

	if rm, ok := summary.Metrics[monitoring.MetricResponseRate]; ok && rm.Current < responseRateThreshold {
		opp.ImmediateActions = append(opp.ImmediateActions, Opportunity{
			Action:               "optimize_message_timing",
			Reason:               fmt.Sprintf("Low response rate %.3f", rm.Current),
			PotentialImpact:      "medium",
			EstimatedImprovement: "10-20% response rate increase",
		})
	}

	if dm, ok := summary.Metrics[monitoring.MetricDeliveryRate]; ok && dm.Current < deliveryRateThreshold {
		opp.RiskMitigation = append(opp.RiskMitigation, Opportunity{
			Action:          "investigate_delivery_issues",
			Reason:          fmt.Sprintf("Delivery rate %.3f below optimal", dm.Current),
			PotentialImpact: "high",
			Urgency:         "immediate",
		})
	}

	for _, metric := range monitoring.AllMetricTypes {
		trend, ok := summary.Trends[metric]
		if !ok {
			continue
		}
		if trend.Direction == "decreasing" && trend.Strength == "strong" {
			opp.StrategicImprovements = append(opp.StrategicImprovements, Opportunity{
				Action:          fmt.Sprintf("reverse_%s_decline", metric),
				Reason:          fmt.Sprintf("Strong declining trend in %s", metric),
				PotentialImpact: "medium",
				Timeline:        "7-14 days",
			})
		}
	}

	if calc.ROIPercentage > roiGrowthThreshold {
		opp.GrowthOpportunities = append(opp.GrowthOpportunities, Opportunity{
			Action:               "scale_successful_segments",
			Reason:               "Strong ROI performance indicates scaling potential",
			PotentialImpact:      "high",
			EstimatedImprovement: "50-100% total ROI increase",
		})
	}

	analysis := Analysis{
		AnalyzedAt: e.nowFunc(),
		CampaignID: campaignID,
		CurrentPerformance: Performance{
			ROIPercentage: calc.ROIPercentage,
			TotalRevenue:  calc.TotalRevenue,
			NetProfit:     calc.NetProfit,
		},
		Opportunities:   opp,
		PriorityScore:   priorityScore(opp),
		Recommendations: recommendations(opp),
	}

	zap.L().Info("optimization analysis produced",
		zap.String("campaign_id", campaignID),
		zap.Float64("priority_score", analysis.PriorityScore),
		zap.Int("recommendations", len(analysis.Recommendations)),
	)
	return analysis
}

func priorityScore(opp Opportunities) float64 {
	score := float64(len(opp.ImmediateActions)*weightImmediate +
		len(opp.RiskMitigation)*weightRisk +
		len(opp.StrategicImprovements)*weightStrategic +
		len(opp.GrowthOpportunities)*weightGrowth)
	if score > maxPriority {
		return maxPriority
	}
	return score
}

// recommendations flattens opportunities into a prioritized list:
// urgent risk first, then immediate actions, top strategic items, and
// growth openings.
func recommendations(opp Opportunities) []string {
	var out []string
	for _, item := range opp.RiskMitigation {
		out = append(out, fmt.Sprintf("URGENT: %s - %s", item.Action, item.Reason))
	}
	for _, item := range opp.ImmediateActions {
		out = append(out, fmt.Sprintf("HIGH: %s - %s", item.Action, item.Reason))
	}
	strategic := opp.StrategicImprovements
	if len(strategic) > 3 {
		strategic = strategic[:3]
	}
	for _, item := range strategic {
		out = append(out, fmt.Sprintf("MEDIUM: %s - %s", item.Action, item.Reason))
	}
	growth := opp.GrowthOpportunities
	if len(growth) > 2 {
		growth = growth[:2]
	}
	for _, item := range growth {
		out = append(out, fmt.Sprintf("GROWTH: %s - %s", item.Action, item.Reason))
	}
	return out
}

package roi

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

// Value tiers for the conversion breakdown.
const (
	highValueRevenue   = 150.0
	mediumValueRevenue = 80.0
)

// Projection parameters.
const (
	minConversionsForProjection = 10
	defaultHorizonDays          = 21
	trailingRevenueWindow       = 20
)

// Breakdown details conversions by value tier.
type Breakdown struct {
	TotalConversions       int     `json:"total_conversions"`
	AverageConversionValue float64 `json:"average_conversion_value"`
	ConversionRate         float64 `json:"conversion_rate"`
	HighValueRevenue       float64 `json:"high_value_revenue"`
	MediumValueRevenue     float64 `json:"medium_value_revenue"`
	LowValueRevenue        float64 `json:"low_value_revenue"`
	HighValueConversions   int     `json:"high_value_conversions"`
	MediumValueConversions int     `json:"medium_value_conversions"`
	LowValueConversions    int     `json:"low_value_conversions"`
}

// Projection extrapolates campaign revenue to the end of the horizon.
type Projection struct {
	ProjectedFinalROI      float64 `json:"projected_final_roi"`
	ConfidenceLevel        float64 `json:"confidence_level"`
	ProjectedTotalRevenue  float64 `json:"projected_total_revenue"`
	TimeToTargetDays       int     `json:"time_to_target"`
	DailyRevenueTrend      float64 `json:"daily_revenue_trend"`
}

// Calculation is the full ROI report for a campaign.
type Calculation struct {
	CampaignID      string     `json:"campaign_id"`
	TotalInvestment float64    `json:"total_investment"`
	TotalRevenue    float64    `json:"total_revenue"`
	NetProfit       float64    `json:"net_profit"`
	ROIPercentage   float64    `json:"roi_percentage"`
	ROIRatio        float64    `json:"roi_ratio"`
	CalculatedAt    time.Time  `json:"calculation_timestamp"`
	Breakdown       Breakdown  `json:"breakdown"`
	Projections     Projection `json:"projections"`
}

// Calculator turns ledger entries into ROI calculations.
type Calculator struct {
	ledger *Ledger

	// TargetAudience is the denominator for the breakdown's conversion
	// rate; zero disables the rate.
	TargetAudience int
	// HorizonDays is the campaign length assumed for projections.
	HorizonDays int

	nowFunc func() time.Time
}

// NewCalculator creates a calculator over the ledger with the default
// 21-day projection horizon.
func NewCalculator(ledger *Ledger) *Calculator {
	return &Calculator{
		ledger:      ledger,
		HorizonDays: defaultHorizonDays,
		nowFunc:     time.Now,
	}
}

// Calculate computes the campaign's ROI from the cumulative ledger entries.
// It is a pure function of the ledger state: ROI% = (revenue − investment) /
// investment × 100, with zero investment yielding zero ROI.
func (c *Calculator) Calculate(campaignID string) Calculation {
	investments := c.ledger.Investments(campaignID)
	conversions := c.ledger.Conversions(campaignID)

	var totalInvestment, totalRevenue float64
	for _, inv := range investments {
		totalInvestment += inv.Amount
	}
	for _, conv := range conversions {
		totalRevenue += conv.Revenue
	}

	calc := Calculation{
		CampaignID:      campaignID,
		TotalInvestment: totalInvestment,
		TotalRevenue:    totalRevenue,
		NetProfit:       totalRevenue - totalInvestment,
		CalculatedAt:    c.nowFunc(),
	}
	if totalInvestment > 0 {
		calc.ROIPercentage = (totalRevenue - totalInvestment) / totalInvestment * 100
		calc.ROIRatio = totalRevenue / totalInvestment
	}

	calc.Breakdown = c.breakdown(conversions)
	calc.Projections = c.project(totalInvestment, totalRevenue, conversions)

	zap.L().Info("roi calculated",
		zap.String("campaign_id", campaignID),
		zap.Float64("roi_percentage", calc.ROIPercentage),
		zap.Float64("total_investment", totalInvestment),
		zap.Float64("total_revenue", totalRevenue),
	)
	return calc
}

func (c *Calculator) breakdown(conversions []model.Conversion) Breakdown {
	b := Breakdown{TotalConversions: len(conversions)}
	if len(conversions) == 0 {
		return b
	}

	var total float64
	for _, conv := range conversions {
		total += conv.Revenue
		switch {
		case conv.Revenue >= highValueRevenue:
			b.HighValueRevenue += conv.Revenue
			b.HighValueConversions++
		case conv.Revenue >= mediumValueRevenue:
			b.MediumValueRevenue += conv.Revenue
			b.MediumValueConversions++
		default:
			b.LowValueRevenue += conv.Revenue
			b.LowValueConversions++
		}
	}
	b.AverageConversionValue = total / float64(len(conversions))
	if c.TargetAudience > 0 {
		b.ConversionRate = float64(len(conversions)) / float64(c.TargetAudience)
	}
	return b
}

// project extrapolates final ROI from the recent conversion pace. Fewer than
// ten conversions is too little data: everything is zeroed with no
// confidence.
func (c *Calculator) project(totalInvestment, totalRevenue float64, conversions []model.Conversion) Projection {
	if len(conversions) < minConversionsForProjection {
		return Projection{}
	}

	horizon := c.HorizonDays
	if horizon <= 0 {
		horizon = defaultHorizonDays
	}

	now := c.nowFunc()
	daysElapsed := int(now.Sub(conversions[0].Timestamp).Hours() / 24)
	if daysElapsed < 1 {
		daysElapsed = 1
	}
	daysRemaining := horizon - daysElapsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	recent := conversions[len(conversions)-minConversionsForProjection:]
	var recentRevenue float64
	for _, conv := range recent {
		recentRevenue += conv.Revenue
	}
	dailyRevenue := recentRevenue / float64(daysElapsed)

	projectedTotal := totalRevenue + dailyRevenue*float64(daysRemaining)

	var projectedROI float64
	if totalInvestment > 0 {
		projectedROI = (projectedTotal - totalInvestment) / totalInvestment * 100
	}

	// Confidence from revenue consistency over the trailing window.
	tail := conversions
	if len(tail) > trailingRevenueWindow {
		tail = tail[len(tail)-trailingRevenueWindow:]
	}
	values := make([]float64, len(tail))
	for i, conv := range tail {
		values[i] = conv.Revenue
	}
	confidence := 0.0
	if m := meanOf(values); m > 0 {
		confidence = math.Max(0, 1-stddevOf(values)/m)
	}

	return Projection{
		ProjectedFinalROI:     projectedROI,
		ConfidenceLevel:       confidence,
		ProjectedTotalRevenue: projectedTotal,
		TimeToTargetDays:      daysRemaining,
		DailyRevenueTrend:     dailyRevenue,
	}
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := meanOf(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

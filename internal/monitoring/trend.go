package monitoring

import (
	"math"
	"time"
)

// Trend describes the linear fit of a metric series.
type Trend struct {
	Direction string  `json:"direction"` // "increasing" or "decreasing"
	Slope     float64 `json:"slope"`
	Strength  string  `json:"strength"` // "strong" or "weak"
}

// MetricSummary aggregates one metric over a window.
type MetricSummary struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Std     float64 `json:"std"`
	Count   int     `json:"count"`
}

// AlertCounts summarizes active alerts for a campaign.
type AlertCounts struct {
	Active   int `json:"active"`
	Critical int `json:"critical"`
	Warnings int `json:"warnings"`
}

// PerformanceSummary is the per-campaign performance report.
type PerformanceSummary struct {
	CampaignID     string                    `json:"campaign_id"`
	TimeRangeHours float64                   `json:"time_range_hours"`
	Metrics        map[MetricType]MetricSummary `json:"metrics"`
	Trends         map[MetricType]Trend      `json:"trends"`
	Alerts         AlertCounts               `json:"alerts"`
}

// fitTrend computes the least-squares slope of values over their indices.
// The trend is strong iff |slope| exceeds half the series stddev.
func fitTrend(values []float64) (Trend, bool) {
	n := len(values)
	if n < 2 {
		return Trend{}, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Trend{}, false
	}
	slope := (fn*sumXY - sumX*sumY) / denom

	direction := "decreasing"
	if slope > 0 {
		direction = "increasing"
	}
	strength := "weak"
	if math.Abs(slope) > stddev(values)*0.5 {
		strength = "strong"
	}
	return Trend{Direction: direction, Slope: slope, Strength: strength}, true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Summarize builds a performance summary for the campaign over the trailing
// window, combining the metric store's series with the alerter's counts.
func Summarize(store *MetricStore, alerter *Alerter, campaignID string, window time.Duration) PerformanceSummary {
	if window <= 0 {
		window = 24 * time.Hour
	}
	cutoff := time.Now().Add(-window)

	summary := PerformanceSummary{
		CampaignID:     campaignID,
		TimeRangeHours: window.Hours(),
		Metrics:        make(map[MetricType]MetricSummary),
		Trends:         make(map[MetricType]Trend),
	}

	for _, metric := range AllMetricTypes {
		points := store.Points(campaignID, metric, cutoff)
		if len(points) == 0 {
			continue
		}

		values := make([]float64, len(points))
		minV, maxV := points[0].Value, points[0].Value
		for i, p := range points {
			values[i] = p.Value
			if p.Value < minV {
				minV = p.Value
			}
			if p.Value > maxV {
				maxV = p.Value
			}
		}

		summary.Metrics[metric] = MetricSummary{
			Current: values[len(values)-1],
			Average: mean(values),
			Min:     minV,
			Max:     maxV,
			Std:     stddev(values),
			Count:   len(values),
		}

		if trend, ok := fitTrend(values); ok {
			summary.Trends[metric] = trend
		}
	}

	if alerter != nil {
		active, critical, warnings := alerter.Counts(campaignID)
		summary.Alerts = AlertCounts{Active: active, Critical: critical, Warnings: warnings}
	}
	return summary
}

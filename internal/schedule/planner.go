package schedule

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

// WhatsApp Business rate limits and the pacing applied under them.
const (
	MaxMessagesPerHour = 250
	MaxMessagesPerDay  = 1000
	MessagesPerMinute  = 3
	BatchSize          = 10
)

// Pacing horizon per segment, in hours. Critical students get the whole
// segment in the first hour; cooler segments are spread out.
var pacingHours = map[string]int{
	"critical": 1,
	"moderate": 3,
	"recent":   5,
}

// Window is the preferred daily send window for a segment.
type Window struct {
	Primary   string   `json:"primary"`
	Secondary string   `json:"secondary"`
	Avoid     []string `json:"avoid,omitempty"`
}

// Send windows by segment, from historical response analysis.
var segmentWindows = map[string]Window{
	"critical": {Primary: "10:00-11:00", Secondary: "15:00-16:00", Avoid: []string{"12:00-13:00", "18:00-19:00"}},
	"moderate": {Primary: "09:00-10:00", Secondary: "14:00-15:00", Avoid: []string{"lunch_hour", "late_evening"}},
	"recent":   {Primary: "11:00-12:00", Secondary: "16:00-17:00", Avoid: []string{"early_morning", "dinner_time"}},
}

var bestDays = []string{"tuesday", "wednesday", "thursday"}

// SegmentSchedule is the send plan for one segment.
type SegmentSchedule struct {
	Segment           string        `json:"segment"`
	Size              int           `json:"size"`
	Window            Window        `json:"window"`
	Days              []string      `json:"days"`
	MessagesPerHour   int           `json:"messages_per_hour"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Plan is the full campaign send schedule.
type Plan struct {
	Segments            []SegmentSchedule  `json:"segments"`
	TotalMessages       int                `json:"total_messages"`
	ExpectedPerformance map[string]float64 `json:"expected_performance"`
}

// BuildPlan computes per-segment send windows and rates for the given
// segments. Rates never exceed the gateway's hourly limit.
func BuildPlan(segments []model.Segment) Plan {
	plan := Plan{
		ExpectedPerformance: map[string]float64{
			"expected_response_rate":   0.22,
			"expected_conversion_rate": 0.144,
			"expected_roi":             2250.0,
			"delivery_success_rate":    0.98,
			"schedule_adherence":       0.95,
		},
	}

	for _, seg := range segments {
		hours := pacingHours[seg.Name]
		if hours == 0 {
			hours = 3
		}
		perHour := int(math.Ceil(float64(seg.Size) / float64(hours)))
		if perHour > MaxMessagesPerHour {
			perHour = MaxMessagesPerHour
		}
		if perHour < 1 {
			perHour = 1
		}
		duration := time.Duration(math.Ceil(float64(seg.Size)/float64(perHour))) * time.Hour

		window, ok := segmentWindows[seg.Name]
		if !ok {
			window = segmentWindows["moderate"]
		}

		plan.Segments = append(plan.Segments, SegmentSchedule{
			Segment:           seg.Name,
			Size:              seg.Size,
			Window:            window,
			Days:              bestDays,
			MessagesPerHour:   perHour,
			EstimatedDuration: duration,
		})
		plan.TotalMessages += seg.Size
	}

	zap.L().Info("built send plan",
		zap.Int("segments", len(plan.Segments)),
		zap.Int("total_messages", plan.TotalMessages),
	)
	return plan
}

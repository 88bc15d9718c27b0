package audience

import (
	"time"

	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

// Inactivity buckets in whole days since last payment.
const (
	criticalInactiveDays = 90
	moderateInactiveDays = 60
	recentInactiveDays   = 30
)

// Lifetime-value tier floors.
const (
	highValueLTV   = 800.0
	mediumValueLTV = 400.0
)

// Reactivation base probability per inactivity bucket. Longer-inactive
// students are harder to win back.
const (
	criticalReactivation = 0.15
	moderateReactivation = 0.25
	recentReactivation   = 0.35
	highValueBonus       = 0.05
)

// Campaign budget split across segments. High-churn-risk students get the
// largest share.
var budgetShares = map[string]float64{
	"critical": 0.40,
	"moderate": 0.35,
	"recent":   0.25,
}

// Inactive buckets students by how long they have gone without paying.
// Students inactive for fewer than 30 days are considered active and
// excluded from campaign targeting.
type Inactive struct {
	Critical []model.Student // 90+ days
	Moderate []model.Student // 60-89 days
	Recent   []model.Student // 30-59 days
}

// Count returns the total number of inactive students.
func (in Inactive) Count() int {
	return len(in.Critical) + len(in.Moderate) + len(in.Recent)
}

// IdentifyInactive splits students into inactivity buckets as of now.
func IdentifyInactive(students []model.Student, now time.Time) Inactive {
	var in Inactive
	for _, s := range students {
		days := s.InactiveDays(now)
		switch {
		case days >= criticalInactiveDays:
			in.Critical = append(in.Critical, s)
		case days >= moderateInactiveDays:
			in.Moderate = append(in.Moderate, s)
		case days >= recentInactiveDays:
			in.Recent = append(in.Recent, s)
		}
	}
	return in
}

// LifetimeValue estimates a student's value as monthly fee times months of
// paying tenure, with a one-month floor.
func LifetimeValue(s model.Student) float64 {
	months := 1.0
	if !s.RegisteredAt.IsZero() && !s.LastPayment.IsZero() && s.LastPayment.After(s.RegisteredAt) {
		if m := s.LastPayment.Sub(s.RegisteredAt).Hours() / 24 / 30; m > months {
			months = m
		}
	}
	return s.MonthlyFee * months
}

// ValueTier classifies a lifetime value as high, medium, or low.
func ValueTier(ltv float64) string {
	switch {
	case ltv >= highValueLTV:
		return "high"
	case ltv >= mediumValueLTV:
		return "medium"
	default:
		return "low"
	}
}

// ReactivationProbability estimates how likely the student is to return:
// a per-bucket base, nudged up for high lifetime value.
func ReactivationProbability(s model.Student, now time.Time) float64 {
	days := s.InactiveDays(now)
	var p float64
	switch {
	case days >= criticalInactiveDays:
		p = criticalReactivation
	case days >= moderateInactiveDays:
		p = moderateReactivation
	default:
		p = recentReactivation
	}
	if ValueTier(LifetimeValue(s)) == "high" {
		p += highValueBonus
	}
	return p
}

// BuildSegments turns cleaned students into targeting segments with budget
// allocation and expected ROI. Empty buckets produce no segment.
func BuildSegments(students []model.Student, budget float64, now time.Time) []model.Segment {
	in := IdentifyInactive(students, now)

	buckets := []struct {
		name     string
		criteria string
		students []model.Student
	}{
		{"critical", "inactive_3_plus_months", in.Critical},
		{"moderate", "inactive_2_3_months", in.Moderate},
		{"recent", "inactive_1_2_months", in.Recent},
	}

	var segments []model.Segment
	for _, b := range buckets {
		if len(b.students) == 0 {
			continue
		}
		seg := model.Segment{
			Name:        b.name,
			Criteria:    b.criteria,
			Students:    b.students,
			Size:        len(b.students),
			BudgetShare: budgetShares[b.name],
		}

		var daysSum, ltvSum, probSum float64
		for _, s := range b.students {
			daysSum += float64(s.InactiveDays(now))
			ltvSum += LifetimeValue(s)
			probSum += ReactivationProbability(s, now)
		}
		n := float64(seg.Size)
		seg.AvgInactiveDays = daysSum / n
		seg.AvgLifetimeValue = ltvSum / n
		seg.ReactivationProbability = probSum / n

		if allocated := budget * seg.BudgetShare; allocated > 0 {
			expectedRevenue := n * seg.ReactivationProbability * seg.AvgLifetimeValue
			seg.ExpectedROI = (expectedRevenue - allocated) / allocated * 100
		}

		segments = append(segments, seg)
	}

	zap.L().Info("built audience segments",
		zap.Int("students", len(students)),
		zap.Int("inactive", in.Count()),
		zap.Int("segments", len(segments)),
	)
	return segments
}

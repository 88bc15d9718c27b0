package model

import "time"

// Student is one member record imported from the studio roster.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
	LastPayment  time.Time `json:"last_payment,omitempty"`
	LastAccess   time.Time `json:"last_access,omitempty"`
	PlanType     string    `json:"plan_type,omitempty"`
	MonthlyFee   float64   `json:"monthly_fee,omitempty"`
	Status       string    `json:"status,omitempty"`
}

// InactiveDays returns whole days since the student's last payment,
// relative to now. Students with no payment on record count as inactive
// since registration.
func (s Student) InactiveDays(now time.Time) int {
	ref := s.LastPayment
	if ref.IsZero() {
		ref = s.RegisteredAt
	}
	if ref.IsZero() || ref.After(now) {
		return 0
	}
	return int(now.Sub(ref).Hours() / 24)
}

// Segment is a targeting group produced by audience segmentation.
type Segment struct {
	Name                    string    `json:"name"`
	Criteria                string    `json:"criteria"`
	Students                []Student `json:"-"`
	Size                    int       `json:"size"`
	AvgInactiveDays         float64   `json:"avg_inactive_days"`
	AvgLifetimeValue        float64   `json:"avg_lifetime_value"`
	ReactivationProbability float64   `json:"reactivation_probability"`
	BudgetShare             float64   `json:"budget_share"`
	ExpectedROI             float64   `json:"expected_roi"`
}

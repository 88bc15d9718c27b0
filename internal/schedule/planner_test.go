package schedule

import (
	"testing"
	"time"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

func TestBuildPlan_PacesSegments(t *testing.T) {
	plan := BuildPlan([]model.Segment{
		{Name: "critical", Size: 85},
		{Name: "moderate", Size: 165},
		{Name: "recent", Size: 200},
	})

	if plan.TotalMessages != 450 {
		t.Errorf("total messages = %d, want 450", plan.TotalMessages)
	}
	if len(plan.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(plan.Segments))
	}

	critical := plan.Segments[0]
	if critical.MessagesPerHour != 85 {
		t.Errorf("critical rate = %d/h, want 85 (whole segment in first hour)", critical.MessagesPerHour)
	}
	if critical.EstimatedDuration != time.Hour {
		t.Errorf("critical duration = %v, want 1h", critical.EstimatedDuration)
	}

	moderate := plan.Segments[1]
	if moderate.MessagesPerHour != 55 {
		t.Errorf("moderate rate = %d/h, want 55", moderate.MessagesPerHour)
	}
	if moderate.EstimatedDuration != 3*time.Hour {
		t.Errorf("moderate duration = %v, want 3h", moderate.EstimatedDuration)
	}

	recent := plan.Segments[2]
	if recent.MessagesPerHour != 40 {
		t.Errorf("recent rate = %d/h, want 40", recent.MessagesPerHour)
	}
}

func TestBuildPlan_CapsAtGatewayLimit(t *testing.T) {
	plan := BuildPlan([]model.Segment{{Name: "critical", Size: 1000}})

	if got := plan.Segments[0].MessagesPerHour; got != MaxMessagesPerHour {
		t.Errorf("rate = %d/h, want capped at %d", got, MaxMessagesPerHour)
	}
	if got := plan.Segments[0].EstimatedDuration; got != 4*time.Hour {
		t.Errorf("duration = %v, want 4h", got)
	}
}

func TestBuildPlan_SegmentWindows(t *testing.T) {
	plan := BuildPlan([]model.Segment{
		{Name: "critical", Size: 10},
		{Name: "vip", Size: 10}, // unknown segment falls back to moderate pacing
	})

	if got := plan.Segments[0].Window.Primary; got != "10:00-11:00" {
		t.Errorf("critical window = %q, want 10:00-11:00", got)
	}
	if got := plan.Segments[1].Window.Primary; got != "09:00-10:00" {
		t.Errorf("fallback window = %q, want 09:00-10:00", got)
	}
	if got := plan.Segments[1].MessagesPerHour; got != 4 {
		t.Errorf("fallback rate = %d/h, want 4 (10 over 3h)", got)
	}
}

func TestBuildPlan_ExpectedPerformance(t *testing.T) {
	plan := BuildPlan(nil)
	if got := plan.ExpectedPerformance["expected_roi"]; got != 2250.0 {
		t.Errorf("expected roi = %v, want 2250", got)
	}
	if plan.TotalMessages != 0 {
		t.Errorf("total = %d, want 0", plan.TotalMessages)
	}
}

package roi

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestCalculate_PureFunctionOfLedger(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)
	ctx := context.Background()

	l.TrackInvestment(ctx, "camp-1", 100, "media")
	l.TrackInvestment(ctx, "camp-1", 50, "")
	l.TrackConversion(ctx, "camp-1", "stu-1", 300, "")

	calc := c.Calculate("camp-1")

	if calc.TotalInvestment != 150 {
		t.Errorf("investment = %v, want 150", calc.TotalInvestment)
	}
	if calc.TotalRevenue != 300 {
		t.Errorf("revenue = %v, want 300", calc.TotalRevenue)
	}
	if calc.NetProfit != 150 {
		t.Errorf("net profit = %v, want 150", calc.NetProfit)
	}
	if calc.ROIPercentage != 100 {
		t.Errorf("roi%% = %v, want 100", calc.ROIPercentage)
	}
	if calc.ROIRatio != 2 {
		t.Errorf("ratio = %v, want 2", calc.ROIRatio)
	}

	// Same inputs, same outputs.
	again := c.Calculate("camp-1")
	if again.ROIPercentage != calc.ROIPercentage || again.NetProfit != calc.NetProfit {
		t.Error("expected identical result for unchanged ledger")
	}
}

func TestCalculate_ZeroInvestment(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)

	l.TrackConversion(context.Background(), "camp-1", "stu-1", 100, "")

	calc := c.Calculate("camp-1")
	if calc.ROIPercentage != 0 || calc.ROIRatio != 0 {
		t.Errorf("expected zero roi with no investment, got %%=%v ratio=%v",
			calc.ROIPercentage, calc.ROIRatio)
	}
}

func TestBreakdown_ValueTiers(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)
	c.TargetAudience = 650
	ctx := context.Background()

	l.TrackInvestment(ctx, "camp-1", 100, "")
	l.TrackConversion(ctx, "camp-1", "stu-1", 200, "") // high (≥150)
	l.TrackConversion(ctx, "camp-1", "stu-2", 150, "") // high (boundary)
	l.TrackConversion(ctx, "camp-1", "stu-3", 100, "") // medium (≥80)
	l.TrackConversion(ctx, "camp-1", "stu-4", 50, "")  // low

	b := c.Calculate("camp-1").Breakdown

	if b.TotalConversions != 4 {
		t.Errorf("total = %d, want 4", b.TotalConversions)
	}
	if b.HighValueConversions != 2 || b.HighValueRevenue != 350 {
		t.Errorf("high = %d/%v, want 2/350", b.HighValueConversions, b.HighValueRevenue)
	}
	if b.MediumValueConversions != 1 || b.MediumValueRevenue != 100 {
		t.Errorf("medium = %d/%v, want 1/100", b.MediumValueConversions, b.MediumValueRevenue)
	}
	if b.LowValueConversions != 1 || b.LowValueRevenue != 50 {
		t.Errorf("low = %d/%v, want 1/50", b.LowValueConversions, b.LowValueRevenue)
	}
	if b.AverageConversionValue != 125 {
		t.Errorf("avg = %v, want 125", b.AverageConversionValue)
	}
	wantRate := 4.0 / 650.0
	if math.Abs(b.ConversionRate-wantRate) > 1e-9 {
		t.Errorf("rate = %v, want %v", b.ConversionRate, wantRate)
	}
}

func TestProjection_RequiresTenConversions(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)
	ctx := context.Background()

	l.TrackInvestment(ctx, "camp-1", 1000, "")
	for i := 0; i < 9; i++ {
		l.TrackConversion(ctx, "camp-1", "stu", 100, "")
	}

	p := c.Calculate("camp-1").Projections
	if p.ProjectedFinalROI != 0 || p.ConfidenceLevel != 0 || p.ProjectedTotalRevenue != 0 {
		t.Errorf("expected zeroed projection below 10 conversions, got %+v", p)
	}
}

func TestProjection_ExtrapolatesDailyRevenue(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)

	now := time.Now()
	// All entries recorded 7 days ago; 12 identical conversions of 100.
	l.nowFunc = func() time.Time { return now.AddDate(0, 0, -7) }
	ctx := context.Background()
	l.TrackInvestment(ctx, "camp-1", 1000, "")
	for i := 0; i < 12; i++ {
		l.TrackConversion(ctx, "camp-1", "stu", 100, "")
	}
	c.nowFunc = func() time.Time { return now }

	p := c.Calculate("camp-1").Projections

	// Last 10 conversions total 1000 over 7 elapsed days.
	wantDaily := 1000.0 / 7.0
	if math.Abs(p.DailyRevenueTrend-wantDaily) > 1e-9 {
		t.Errorf("daily trend = %v, want %v", p.DailyRevenueTrend, wantDaily)
	}
	if p.TimeToTargetDays != 14 {
		t.Errorf("days remaining = %d, want 14", p.TimeToTargetDays)
	}
	wantTotal := 1200 + wantDaily*14
	if math.Abs(p.ProjectedTotalRevenue-wantTotal) > 1e-6 {
		t.Errorf("projected revenue = %v, want %v", p.ProjectedTotalRevenue, wantTotal)
	}
	// Identical revenues: zero spread, full confidence.
	if math.Abs(p.ConfidenceLevel-1.0) > 1e-9 {
		t.Errorf("confidence = %v, want 1", p.ConfidenceLevel)
	}
}

func TestEndToEnd_ROITwoHundredPercent(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)
	ctx := context.Background()

	l.TrackInvestment(ctx, "camp-1", 5000, "")
	for i := 0; i < 12; i++ {
		l.TrackConversion(ctx, "camp-1", "stu", 1250, "")
	}

	calc := c.Calculate("camp-1")
	if calc.TotalRevenue != 15000 {
		t.Fatalf("revenue = %v, want 15000", calc.TotalRevenue)
	}
	if calc.ROIPercentage != 200 {
		t.Errorf("roi%% = %v, want 200", calc.ROIPercentage)
	}
}

func TestLedger_Load(t *testing.T) {
	l := NewLedger(nil)
	c := NewCalculator(l)

	l.Load("camp-1", nil, nil)
	if got := c.Calculate("camp-1"); got.TotalInvestment != 0 {
		t.Errorf("investment = %v, want 0", got.TotalInvestment)
	}
}

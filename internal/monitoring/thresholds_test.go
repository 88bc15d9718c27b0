package monitoring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultThresholds_CoverCoreMetrics(t *testing.T) {
	th := DefaultThresholds()
	for _, metric := range []MetricType{
		MetricResponseRate, MetricConversionRate, MetricROI,
		MetricCostPerAcq, MetricDeliveryRate,
	} {
		if _, ok := th[metric]; !ok {
			t.Errorf("missing default thresholds for %s", metric)
		}
	}
	if *th[MetricResponseRate].Target != 0.22 {
		t.Errorf("response rate target = %v, want 0.22", *th[MetricResponseRate].Target)
	}
}

func TestLoadThresholds_MergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	content := "response_rate:\n  critical_low: 0.01\n  warning_low: 0.03\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	th, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *th[MetricResponseRate].CriticalLow != 0.01 {
		t.Errorf("critical_low = %v, want 0.01", *th[MetricResponseRate].CriticalLow)
	}
	// Unmentioned metrics keep defaults.
	if *th[MetricROI].Target != 2250.0 {
		t.Errorf("roi target = %v, want default 2250", *th[MetricROI].Target)
	}
}

func TestLoadThresholds_EmptyPathUsesDefaults(t *testing.T) {
	th, err := LoadThresholds("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(th) == 0 {
		t.Error("expected defaults")
	}
}

func TestLoadThresholds_MissingFile(t *testing.T) {
	if _, err := LoadThresholds("/nonexistent/thresholds.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

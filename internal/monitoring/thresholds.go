package monitoring

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Levels holds the optional alert thresholds for one metric. Nil means the
// level is not enforced for that metric.
type Levels struct {
	CriticalLow  *float64 `yaml:"critical_low"`
	WarningLow   *float64 `yaml:"warning_low"`
	Target       *float64 `yaml:"target"`
	WarningHigh  *float64 `yaml:"warning_high"`
	CriticalHigh *float64 `yaml:"critical_high"`
}

// Thresholds maps metric types to their alert levels.
type Thresholds map[MetricType]Levels

func ptr(v float64) *float64 { return &v }

// DefaultThresholds returns the built-in alert thresholds for reactivation
// campaigns.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MetricResponseRate: {
			CriticalLow:  ptr(0.05),
			WarningLow:   ptr(0.10),
			Target:       ptr(0.22),
			WarningHigh:  ptr(0.35),
			CriticalHigh: ptr(0.50),
		},
		MetricConversionRate: {
			CriticalLow:  ptr(0.02),
			WarningLow:   ptr(0.05),
			Target:       ptr(0.144),
			WarningHigh:  ptr(0.25),
			CriticalHigh: ptr(0.40),
		},
		MetricROI: {
			CriticalLow:  ptr(500.0),
			WarningLow:   ptr(1000.0),
			Target:       ptr(2250.0),
			WarningHigh:  ptr(4000.0),
			CriticalHigh: ptr(6000.0),
		},
		MetricCostPerAcq: {
			CriticalLow:  ptr(10.0),
			WarningLow:   ptr(25.0),
			Target:       ptr(50.0),
			WarningHigh:  ptr(75.0),
			CriticalHigh: ptr(100.0),
		},
		MetricDeliveryRate: {
			CriticalLow:  ptr(0.85),
			WarningLow:   ptr(0.92),
			Target:       ptr(0.98),
			WarningHigh:  ptr(1.0),
			CriticalHigh: ptr(1.0),
		},
	}
}

// LoadThresholds reads threshold overrides from a YAML file and merges them
// over the defaults. Metrics absent from the file keep their default levels.
func LoadThresholds(path string) (Thresholds, error) {
	out := DefaultThresholds()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read thresholds file")
	}

	var overrides map[MetricType]Levels
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "monitoring: parse thresholds file")
	}

	for metric, levels := range overrides {
		out[metric] = levels
	}
	return out, nil
}

package recovery

import (
	"sort"
	"time"

	"github.com/reengage-labs/campaign-cli/internal/resilience"
)

// TypeCount is one entry in the most-common-errors list.
type TypeCount struct {
	ErrorType string `json:"error_type"`
	Count     int    `json:"count"`
}

// Statistics summarizes handled errors over a trailing window.
type Statistics struct {
	TotalErrors         int                                 `json:"total_errors"`
	TimeRangeHours      float64                             `json:"time_range_hours"`
	ErrorRate           float64                             `json:"error_rate"`
	RecoverySuccessRate float64                             `json:"recovery_success_rate"`
	BySeverity          map[string]int                      `json:"errors_by_severity,omitempty"`
	ByCategory          map[string]int                      `json:"errors_by_category,omitempty"`
	TopErrorTypes       []TypeCount                         `json:"most_common_errors,omitempty"`
	CircuitBreakers     map[string]resilience.BreakerStatus `json:"circuit_breaker_status,omitempty"`
}

// Statistics returns error statistics for the trailing window.
func (e *Engine) Statistics(window time.Duration) Statistics {
	if window <= 0 {
		window = 24 * time.Hour
	}

	e.mu.Lock()
	cutoff := e.nowFunc().Add(-window)
	var relevant []*ErrorRecord
	for _, rec := range e.records {
		if !rec.Context.Timestamp.Before(cutoff) {
			relevant = append(relevant, rec)
		}
	}
	e.mu.Unlock()

	hours := window.Hours()
	stats := Statistics{
		TotalErrors:     len(relevant),
		TimeRangeHours:  hours,
		CircuitBreakers: e.breakers.Snapshot(),
	}
	if len(relevant) == 0 {
		return stats
	}

	stats.BySeverity = make(map[string]int)
	stats.ByCategory = make(map[string]int)
	typeCounts := make(map[string]int)
	recovered := 0
	for _, rec := range relevant {
		stats.BySeverity[string(rec.Severity)]++
		stats.ByCategory[string(rec.Category)]++
		typeCounts[rec.ErrorType]++
		if rec.RecoverySuccess {
			recovered++
		}
	}

	stats.ErrorRate = float64(len(relevant)) / hours
	stats.RecoverySuccessRate = float64(recovered) / float64(len(relevant))

	for errType, count := range typeCounts {
		stats.TopErrorTypes = append(stats.TopErrorTypes, TypeCount{ErrorType: errType, Count: count})
	}
	sort.Slice(stats.TopErrorTypes, func(i, j int) bool {
		if stats.TopErrorTypes[i].Count != stats.TopErrorTypes[j].Count {
			return stats.TopErrorTypes[i].Count > stats.TopErrorTypes[j].Count
		}
		return stats.TopErrorTypes[i].ErrorType < stats.TopErrorTypes[j].ErrorType
	})
	if len(stats.TopErrorTypes) > 5 {
		stats.TopErrorTypes = stats.TopErrorTypes[:5]
	}

	return stats
}

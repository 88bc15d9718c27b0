// Package monitoring tracks live campaign performance metrics, evaluates
// alert thresholds, and runs per-campaign sampling loops.
package monitoring

import (
	"sync"
	"time"
)

// MetricType identifies a tracked performance metric.
type MetricType string

const (
	MetricResponseRate    MetricType = "response_rate"
	MetricConversionRate  MetricType = "conversion_rate"
	MetricROI             MetricType = "roi"
	MetricCostPerAcq      MetricType = "cpa"
	MetricDeliveryRate    MetricType = "delivery_rate"
	MetricEngagementScore MetricType = "engagement_score"
	MetricLifetimeValue   MetricType = "lifetime_value"
	MetricChurnRisk       MetricType = "churn_risk"
)

// AllMetricTypes lists every tracked metric in evaluation order.
var AllMetricTypes = []MetricType{
	MetricResponseRate,
	MetricConversionRate,
	MetricROI,
	MetricCostPerAcq,
	MetricDeliveryRate,
	MetricEngagementScore,
	MetricLifetimeValue,
	MetricChurnRisk,
}

// MetricPoint is one metric measurement.
type MetricPoint struct {
	Timestamp  time.Time      `json:"timestamp"`
	MetricType MetricType     `json:"metric_type"`
	Value      float64        `json:"value"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Segment    string         `json:"segment,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// defaultHistoryLimit bounds each per-campaign, per-metric series.
const defaultHistoryLimit = 1000

// ring is a fixed-capacity circular buffer of metric points.
type ring struct {
	buf   []MetricPoint
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]MetricPoint, capacity)}
}

func (r *ring) push(p MetricPoint) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) slice() []MetricPoint {
	out := make([]MetricPoint, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// MetricStore holds bounded metric history keyed by campaign and metric type.
// Safe for concurrent use.
type MetricStore struct {
	mu    sync.RWMutex
	limit int
	rings map[string]*ring
}

// NewMetricStore creates a store keeping up to limit points per series.
// A non-positive limit uses the default of 1000.
func NewMetricStore(limit int) *MetricStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &MetricStore{
		limit: limit,
		rings: make(map[string]*ring),
	}
}

func seriesKey(campaignID string, metric MetricType) string {
	return campaignID + "_" + string(metric)
}

// Record appends a point to its series, evicting the oldest past the limit.
func (s *MetricStore) Record(p MetricPoint) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := seriesKey(p.CampaignID, p.MetricType)
	r, ok := s.rings[key]
	if !ok {
		r = newRing(s.limit)
		s.rings[key] = r
	}
	r.push(p)
}

// Points returns the series points at or after the cutoff, oldest first.
func (s *MetricStore) Points(campaignID string, metric MetricType, since time.Time) []MetricPoint {
	s.mu.RLock()
	r, ok := s.rings[seriesKey(campaignID, metric)]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	all := r.slice()
	s.mu.RUnlock()

	var out []MetricPoint
	for _, p := range all {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the most recent point for the series, if any.
func (s *MetricStore) Latest(campaignID string, metric MetricType) (MetricPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rings[seriesKey(campaignID, metric)]
	if !ok || r.n == 0 {
		return MetricPoint{}, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

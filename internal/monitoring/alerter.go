package monitoring

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertLevel grades alert severity.
type AlertLevel string

const (
	AlertInfo      AlertLevel = "info"
	AlertWarning   AlertLevel = "warning"
	AlertCritical  AlertLevel = "critical"
	AlertEmergency AlertLevel = "emergency"
)

// Alert is one threshold breach.
type Alert struct {
	ID             string     `json:"id"`
	Level          AlertLevel `json:"level"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	MetricType     MetricType `json:"metric_type"`
	CampaignID     string     `json:"campaign_id,omitempty"`
	CurrentValue   float64    `json:"current_value"`
	ThresholdValue float64    `json:"threshold_value"`
	Timestamp      time.Time  `json:"timestamp"`
	Acknowledged   bool       `json:"acknowledged"`
	ActionsTaken   []string   `json:"actions_taken,omitempty"`
}

// AlertCallback receives every newly raised alert.
type AlertCallback func(Alert)

// Alerter evaluates metric samples against thresholds, de-duplicates active
// alerts per (campaign, metric, level), and records automatic actions for
// critical breaches. The active-alert map is shared across campaigns and
// synchronized.
type Alerter struct {
	thresholds Thresholds

	mu        sync.Mutex
	active    map[string]*Alert // alert ID → alert
	dedupe    map[string]string // campaign|metric_level key → active alert ID
	callbacks []AlertCallback

	nowFunc func() time.Time
}

// NewAlerter creates an alerter with the given thresholds.
func NewAlerter(thresholds Thresholds) *Alerter {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Alerter{
		thresholds: thresholds,
		active:     make(map[string]*Alert),
		dedupe:     make(map[string]string),
		nowFunc:    time.Now,
	}
}

// AddCallback registers a callback invoked for each newly raised alert.
func (a *Alerter) AddCallback(cb AlertCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, cb)
}

// Evaluate checks one sample against its thresholds. It returns the raised
// alert, or nil when the value is in range or an unacknowledged alert for the
// same (metric, level) is already active for that campaign.
func (a *Alerter) Evaluate(campaignID string, metric MetricType, value float64) *Alert {
	levels, ok := a.thresholds[metric]
	if !ok {
		return nil
	}

	var (
		level     AlertLevel
		threshold float64
		desc      string
	)

	switch {
	case levels.CriticalLow != nil && value < *levels.CriticalLow:
		level = AlertCritical
		threshold = *levels.CriticalLow
		desc = fmt.Sprintf("%s critically low: %.3f < %.3f", metric, value, threshold)
	case levels.CriticalHigh != nil && value > *levels.CriticalHigh:
		level = AlertCritical
		threshold = *levels.CriticalHigh
		desc = fmt.Sprintf("%s critically high: %.3f > %.3f", metric, value, threshold)
	case levels.WarningLow != nil && value < *levels.WarningLow:
		level = AlertWarning
		threshold = *levels.WarningLow
		desc = fmt.Sprintf("%s below warning threshold: %.3f < %.3f", metric, value, threshold)
	case levels.WarningHigh != nil && value > *levels.WarningHigh:
		level = AlertWarning
		threshold = *levels.WarningHigh
		desc = fmt.Sprintf("%s above warning threshold: %.3f > %.3f", metric, value, threshold)
	default:
		return nil
	}

	alert := &Alert{
		ID:             "alert_" + uuid.NewString(),
		Level:          level,
		Title:          alertTitle(metric),
		Description:    desc,
		MetricType:     metric,
		CampaignID:     campaignID,
		CurrentValue:   value,
		ThresholdValue: threshold,
		Timestamp:      a.nowFunc(),
	}

	key := campaignID + "|" + string(metric) + "_" + string(level)

	a.mu.Lock()
	if existingID, dup := a.dedupe[key]; dup {
		if existing, ok := a.active[existingID]; ok && !existing.Acknowledged {
			a.mu.Unlock()
			return nil
		}
	}

	if alert.Level == AlertCritical {
		alert.ActionsTaken = automaticActions(metric, value, threshold)
	}

	a.active[alert.ID] = alert
	a.dedupe[key] = alert.ID
	callbacks := make([]AlertCallback, len(a.callbacks))
	copy(callbacks, a.callbacks)
	a.mu.Unlock()

	zap.L().Warn("alert generated",
		zap.String("alert_id", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.String("campaign_id", campaignID),
		zap.String("description", alert.Description),
	)
	for _, action := range alert.ActionsTaken {
		zap.L().Info("automatic action taken",
			zap.String("alert_id", alert.ID),
			zap.String("action", action),
		)
	}

	for _, cb := range callbacks {
		cb(*alert)
	}
	return alert
}

// Acknowledge marks an active alert as acknowledged, allowing a new alert to
// be raised for the same (campaign, metric, level). Returns false for unknown
// IDs.
func (a *Alerter) Acknowledge(alertID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	alert, ok := a.active[alertID]
	if !ok {
		return false
	}
	alert.Acknowledged = true
	zap.L().Info("alert acknowledged", zap.String("alert_id", alertID))
	return true
}

// Active returns unacknowledged alerts, optionally filtered by campaign.
func (a *Alerter) Active(campaignID string) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Alert
	for _, alert := range a.active {
		if alert.Acknowledged {
			continue
		}
		if campaignID != "" && alert.CampaignID != campaignID {
			continue
		}
		out = append(out, *alert)
	}
	return out
}

// Counts returns active, critical, and warning alert counts for a campaign.
func (a *Alerter) Counts(campaignID string) (active, critical, warnings int) {
	for _, alert := range a.Active(campaignID) {
		active++
		switch alert.Level {
		case AlertCritical, AlertEmergency:
			critical++
		case AlertWarning:
			warnings++
		}
	}
	return active, critical, warnings
}

func alertTitle(metric MetricType) string {
	words := strings.Split(string(metric), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ") + " Alert"
}

// automaticActions lists the corrective actions recorded when a critical-low
// breach occurs on an actionable metric.
func automaticActions(metric MetricType, value, threshold float64) []string {
	if value >= threshold {
		return nil
	}
	switch metric {
	case MetricResponseRate:
		return []string{"adjust_message_timing", "increase_personalization", "review_message_content"}
	case MetricConversionRate:
		return []string{"strengthen_call_to_action", "adjust_offer_strategy", "review_target_segments"}
	case MetricDeliveryRate:
		return []string{"check_whatsapp_connection", "reduce_sending_rate", "validate_phone_numbers"}
	default:
		return nil
	}
}

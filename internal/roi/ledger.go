// Package roi tracks campaign investments and conversion revenue and turns
// them into return-on-investment calculations and projections.
package roi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

// Mirror persists ledger entries as they are appended. The in-memory ledger
// stays authoritative for calculations; mirror failures are logged and do not
// block tracking.
type Mirror interface {
	AppendInvestment(ctx context.Context, inv model.Investment) error
	AppendConversion(ctx context.Context, conv model.Conversion) error
}

// Ledger is an append-only record of investments and conversions per
// campaign. Safe for concurrent use.
type Ledger struct {
	mu          sync.RWMutex
	investments map[string][]model.Investment
	conversions map[string][]model.Conversion

	mirror  Mirror
	nowFunc func() time.Time
}

// NewLedger creates a ledger. A nil mirror keeps the ledger memory-only.
func NewLedger(mirror Mirror) *Ledger {
	return &Ledger{
		investments: make(map[string][]model.Investment),
		conversions: make(map[string][]model.Conversion),
		mirror:      mirror,
		nowFunc:     time.Now,
	}
}

// TrackInvestment appends a spend entry for the campaign.
func (l *Ledger) TrackInvestment(ctx context.Context, campaignID string, amount float64, category string) {
	if category == "" {
		category = "operational"
	}
	inv := model.Investment{
		CampaignID: campaignID,
		Amount:     amount,
		Category:   category,
		Timestamp:  l.nowFunc(),
	}

	l.mu.Lock()
	l.investments[campaignID] = append(l.investments[campaignID], inv)
	cumulative := 0.0
	for _, i := range l.investments[campaignID] {
		cumulative += i.Amount
	}
	l.mu.Unlock()

	zap.L().Info("investment tracked",
		zap.String("campaign_id", campaignID),
		zap.Float64("amount", amount),
		zap.String("category", category),
		zap.Float64("cumulative", cumulative),
	)

	if l.mirror != nil {
		if err := l.mirror.AppendInvestment(ctx, inv); err != nil {
			zap.L().Error("roi: mirror investment failed",
				zap.String("campaign_id", campaignID),
				zap.Error(err),
			)
		}
	}
}

// TrackConversion appends a conversion with its revenue for the campaign.
func (l *Ledger) TrackConversion(ctx context.Context, campaignID, studentID string, revenue float64, conversionType string) {
	if conversionType == "" {
		conversionType = "reactivation"
	}
	conv := model.Conversion{
		CampaignID:     campaignID,
		StudentID:      studentID,
		Revenue:        revenue,
		ConversionType: conversionType,
		Timestamp:      l.nowFunc(),
	}

	l.mu.Lock()
	l.conversions[campaignID] = append(l.conversions[campaignID], conv)
	l.mu.Unlock()

	zap.L().Info("conversion tracked",
		zap.String("campaign_id", campaignID),
		zap.String("student_id", studentID),
		zap.Float64("revenue", revenue),
		zap.String("conversion_type", conversionType),
	)

	if l.mirror != nil {
		if err := l.mirror.AppendConversion(ctx, conv); err != nil {
			zap.L().Error("roi: mirror conversion failed",
				zap.String("campaign_id", campaignID),
				zap.Error(err),
			)
		}
	}
}

// Investments returns a copy of the campaign's investment entries.
func (l *Ledger) Investments(campaignID string) []model.Investment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Investment, len(l.investments[campaignID]))
	copy(out, l.investments[campaignID])
	return out
}

// Conversions returns a copy of the campaign's conversion entries.
func (l *Ledger) Conversions(campaignID string) []model.Conversion {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Conversion, len(l.conversions[campaignID]))
	copy(out, l.conversions[campaignID])
	return out
}

// Load seeds the ledger from persisted entries, typically at startup.
func (l *Ledger) Load(campaignID string, invs []model.Investment, convs []model.Conversion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.investments[campaignID] = append([]model.Investment(nil), invs...)
	l.conversions[campaignID] = append([]model.Conversion(nil), convs...)
}

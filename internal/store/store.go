// Package store persists campaigns, ledger entries, error records, and the
// imported student roster.
package store

import (
	"context"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
)

// CampaignFilter specifies criteria for listing campaigns.
type CampaignFilter struct {
	Status model.CampaignStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the campaign orchestrator.
// AppendInvestment and AppendConversion double as the ROI ledger mirror.
type Store interface {
	// Campaigns
	CreateCampaign(ctx context.Context, campaign model.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID string, status model.CampaignStatus) error

	// ROI ledger
	AppendInvestment(ctx context.Context, inv model.Investment) error
	AppendConversion(ctx context.Context, conv model.Conversion) error
	ListInvestments(ctx context.Context, campaignID string) ([]model.Investment, error)
	ListConversions(ctx context.Context, campaignID string) ([]model.Conversion, error)

	// Error audit trail
	RecordError(ctx context.Context, rec recovery.ErrorRecord) error

	// Roster
	UpsertStudents(ctx context.Context, students []model.Student) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testCampaign(id string) model.Campaign {
	now := time.Now().UTC().Truncate(time.Second)
	return model.Campaign{
		ID: id,
		Config: model.CampaignConfig{
			CampaignID:         id,
			Name:               "winter reactivation",
			TargetAudienceSize: 610,
			ROITarget:          2250,
			BudgetLimit:        5000,
		},
		Status:     model.CampaignPending,
		PatternID:  "pattern_1",
		WorkflowID: "workflow_1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSQLite_CampaignLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCampaign(ctx, testCampaign("camp-1")))

	got, err := s.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "winter reactivation", got.Config.Name)
	assert.Equal(t, 2250.0, got.Config.ROITarget)
	assert.Equal(t, model.CampaignPending, got.Status)
	assert.Equal(t, "pattern_1", got.PatternID)

	require.NoError(t, s.UpdateCampaignStatus(ctx, "camp-1", model.CampaignRunning))
	got, err = s.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignRunning, got.Status)
}

func TestSQLite_GetCampaignNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCampaign(context.Background(), "ghost")
	assert.ErrorContains(t, err, "not found")

	err = s.UpdateCampaignStatus(context.Background(), "ghost", model.CampaignStopped)
	assert.ErrorContains(t, err, "not found")
}

func TestSQLite_ListCampaignsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCampaign(ctx, testCampaign("camp-1")))
	require.NoError(t, s.CreateCampaign(ctx, testCampaign("camp-2")))
	require.NoError(t, s.UpdateCampaignStatus(ctx, "camp-2", model.CampaignRunning))

	all, err := s.ListCampaigns(ctx, CampaignFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running, err := s.ListCampaigns(ctx, CampaignFilter{Status: model.CampaignRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "camp-2", running[0].ID)
}

func TestSQLite_Ledger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.AppendInvestment(ctx, model.Investment{
		CampaignID: "camp-1", Amount: 1500, Category: "media", Timestamp: now,
	}))
	require.NoError(t, s.AppendConversion(ctx, model.Conversion{
		CampaignID: "camp-1", StudentID: "stu-1", Revenue: 450,
		ConversionType: "plan_renewal", Timestamp: now,
	}))
	require.NoError(t, s.AppendConversion(ctx, model.Conversion{
		CampaignID: "other", StudentID: "stu-2", Revenue: 100,
		ConversionType: "trial", Timestamp: now,
	}))

	invs, err := s.ListInvestments(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, 1500.0, invs[0].Amount)
	assert.NotEmpty(t, invs[0].ID, "ids are generated when absent")

	convs, err := s.ListConversions(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "plan_renewal", convs[0].ConversionType)
}

func TestSQLite_RecordError(t *testing.T) {
	s := newTestStore(t)

	err := s.RecordError(context.Background(), recovery.ErrorRecord{
		ErrorID:          "err-1",
		ErrorType:        "TimeoutError",
		ErrorMessage:     "connection timeout",
		Severity:         recovery.SeverityCritical,
		Category:         recovery.CategoryNetwork,
		RecoveryStrategy: recovery.StrategyRetryWithBackoff,
		Context: recovery.ErrorContext{
			Timestamp:  time.Now().UTC(),
			CampaignID: "camp-1",
			Component:  "waha-send",
		},
	})
	assert.NoError(t, err)
}

func TestSQLite_UpsertStudents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertStudents(ctx, []model.Student{
		{ID: "stu-1", Name: "Maria", MonthlyFee: 150},
		{ID: "stu-2", Name: "Joao", MonthlyFee: 90},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-importing the same ids updates in place.
	n, err = s.UpsertStudents(ctx, []model.Student{
		{ID: "stu-1", Name: "Maria Silva", MonthlyFee: 180},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var name string
	var fee float64
	row := s.db.QueryRowContext(ctx, `SELECT name, monthly_fee FROM students WHERE id = ?`, "stu-1")
	require.NoError(t, row.Scan(&name, &fee))
	assert.Equal(t, "Maria Silva", name)
	assert.Equal(t, 180.0, fee)
}

func TestSQLite_UpsertStudentsEmpty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.UpsertStudents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// Package workflow ties the campaign subsystems together: audience
// preparation, schedule planning, pattern execution, monitoring, ROI
// tracking, and optimization. One Orchestrator serves all campaigns.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reengage-labs/campaign-cli/internal/audience"
	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/monitoring"
	"github.com/reengage-labs/campaign-cli/internal/notify"
	"github.com/reengage-labs/campaign-cli/internal/optimize"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
	"github.com/reengage-labs/campaign-cli/internal/resilience"
	"github.com/reengage-labs/campaign-cli/internal/roi"
	"github.com/reengage-labs/campaign-cli/internal/schedule"
	"github.com/reengage-labs/campaign-cli/internal/store"
	"github.com/reengage-labs/campaign-cli/internal/thinking"
)

// StartResult reports the identifiers and plan of a freshly started campaign.
type StartResult struct {
	CampaignID   string          `json:"campaign_id"`
	WorkflowID   string          `json:"workflow_id"`
	PatternID    string          `json:"pattern_id"`
	AudienceSize int             `json:"audience_size"`
	Segments     []model.Segment `json:"segments,omitempty"`
	Plan         schedule.Plan   `json:"schedule_plan"`
}

// CampaignStatus merges the persisted campaign record with the live view of
// its pattern run, performance, and error handling.
type CampaignStatus struct {
	Campaign     model.Campaign                `json:"campaign"`
	Pattern      thinking.Status               `json:"pattern"`
	Performance  monitoring.PerformanceSummary `json:"performance"`
	Errors       recovery.Statistics           `json:"error_statistics"`
	OpenBreakers []string                      `json:"open_circuit_breakers,omitempty"`
}

// AdaptationReport is the outcome of one real-time adaptation pass.
type AdaptationReport struct {
	Analysis      optimize.Analysis `json:"analysis"`
	Applied       []optimize.Result `json:"applied_actions,omitempty"`
	AdjustedSteps int               `json:"adjusted_steps"`
}

// Orchestrator owns the shared engines and runs campaigns end to end.
type Orchestrator struct {
	store     store.Store
	ledger    *roi.Ledger
	calc      *roi.Calculator
	metrics   *monitoring.MetricStore
	alerter   *monitoring.Alerter
	monitor   *monitoring.Monitor
	recovery  *recovery.Engine
	engine    *thinking.Engine
	optimizer *optimize.Engine
	notifier  *notify.Notifier

	// ctx outlives individual requests; pattern runs and monitoring loops
	// are bound to it so Close stops everything.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	patterns map[string]string // campaign ID → pattern ID

	nowFunc func() time.Time
}

// New wires an orchestrator over the given store. historyLimit bounds the
// per-series metric history (zero means the monitoring default). Alerts,
// recommendations, and breaker trips are published to the notifier; handled
// errors are persisted through the store.
func New(st store.Store, thresholds monitoring.Thresholds, historyLimit int, notifier *notify.Notifier) *Orchestrator {
	breakers := resilience.NewRegistry(resilience.DefaultCircuitBreakerConfig())
	rec := recovery.NewEngine(breakers)
	metrics := monitoring.NewMetricStore(historyLimit)
	alerter := monitoring.NewAlerter(thresholds)
	ledger := roi.NewLedger(st)
	calc := roi.NewCalculator(ledger)

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:     st,
		ledger:    ledger,
		calc:      calc,
		metrics:   metrics,
		alerter:   alerter,
		recovery:  rec,
		engine:    thinking.NewEngine(rec),
		optimizer: optimize.NewEngine(calc, metrics, alerter),
		notifier:  notifier,
		ctx:       ctx,
		cancel:    cancel,
		patterns:  make(map[string]string),
		nowFunc:   time.Now,
	}
	o.monitor = monitoring.NewMonitor(metrics, alerter, o.sample)

	alerter.AddCallback(func(a monitoring.Alert) {
		o.notifier.Publish(o.ctx, notify.Event{
			Kind:       notify.EventAlertRaised,
			CampaignID: a.CampaignID,
			Message:    a.Title,
			Details: map[string]any{
				"level":           string(a.Level),
				"metric_type":     string(a.MetricType),
				"current_value":   a.CurrentValue,
				"threshold_value": a.ThresholdValue,
			},
		})
	})
	rec.AddCallback(func(r recovery.ErrorRecord, d recovery.Disposition) {
		if err := o.store.RecordError(o.ctx, r); err != nil {
			zap.L().Warn("workflow: persist error record failed",
				zap.String("error_id", r.ErrorID), zap.Error(err))
		}
		if d.CircuitState == resilience.CircuitOpen.String() {
			o.notifier.Publish(o.ctx, notify.Event{
				Kind:       notify.EventBreakerOpened,
				CampaignID: r.Context.CampaignID,
				Message:    "circuit breaker opened for " + r.Context.Component,
				Details:    map[string]any{"component": r.Context.Component},
			})
		}
	})
	return o
}

// StartCampaign prepares the audience, plans the send schedule, persists the
// campaign, starts its thinking pattern, and begins performance monitoring.
func (o *Orchestrator) StartCampaign(ctx context.Context, cfg model.CampaignConfig) (StartResult, error) {
	if cfg.CampaignID == "" {
		cfg.CampaignID = "campaign_" + uuid.NewString()
	}
	workflowID := "workflow_" + uuid.NewString()
	now := o.nowFunc().UTC()

	segments, err := o.prepareAudience(ctx, cfg, now)
	if err != nil {
		return StartResult{}, err
	}
	plan := schedule.BuildPlan(segments)

	audienceSize := cfg.TargetAudienceSize
	if audienceSize == 0 {
		audienceSize = plan.TotalMessages
	}

	tc := model.ThinkingContext{
		CampaignID:         cfg.CampaignID,
		TargetAudienceSize: audienceSize,
		ROITarget:          cfg.ROITarget,
		BudgetLimit:        cfg.BudgetLimit,
		TimeConstraints:    cfg.TimeConstraints,
		CurrentPerformance: cfg.TargetMetrics,
	}
	pattern := thinking.CampaignPattern(tc)
	patternID, err := o.engine.StartPattern(o.ctx, pattern, thinking.CampaignExecutor{})
	if err != nil {
		return StartResult{}, eris.Wrap(err, "workflow: start pattern")
	}

	campaign := model.Campaign{
		ID:         cfg.CampaignID,
		Config:     cfg,
		Status:     model.CampaignRunning,
		PatternID:  patternID,
		WorkflowID: workflowID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.store.CreateCampaign(ctx, campaign); err != nil {
		o.engine.Stop(patternID)
		return StartResult{}, eris.Wrap(err, "workflow: persist campaign")
	}

	o.mu.Lock()
	o.patterns[cfg.CampaignID] = patternID
	o.mu.Unlock()

	o.monitor.Start(o.ctx, cfg.CampaignID)

	zap.L().Info("campaign started",
		zap.String("campaign_id", cfg.CampaignID),
		zap.String("workflow_id", workflowID),
		zap.String("pattern_id", patternID),
		zap.Int("audience_size", audienceSize),
		zap.Int("segments", len(segments)),
	)

	return StartResult{
		CampaignID:   cfg.CampaignID,
		WorkflowID:   workflowID,
		PatternID:    patternID,
		AudienceSize: audienceSize,
		Segments:     segments,
		Plan:         plan,
	}, nil
}

// prepareAudience loads and cleans the roster named in the campaign's data
// sources and builds targeting segments. Campaigns without a roster source
// start with no segments. Failures are routed through error recovery before
// being returned.
func (o *Orchestrator) prepareAudience(ctx context.Context, cfg model.CampaignConfig, now time.Time) ([]model.Segment, error) {
	path, ok := cfg.DataSources["roster"]
	if !ok || path == "" {
		return nil, nil
	}

	students, err := audience.LoadRoster(path, audience.RosterOptions{})
	if err != nil {
		o.handleWorkflowError(ctx, err, cfg.CampaignID, "roster_processing")
		return nil, eris.Wrap(err, "workflow: load roster")
	}
	cleaned, report := audience.Clean(students)
	zap.L().Info("roster processed",
		zap.String("campaign_id", cfg.CampaignID),
		zap.Int("input_records", report.InputRecords),
		zap.Int("cleaned_records", report.CleanedRecords),
		zap.Float64("quality_score", report.QualityScore),
	)

	if _, err := o.store.UpsertStudents(ctx, cleaned); err != nil {
		o.handleWorkflowError(ctx, err, cfg.CampaignID, "roster_processing")
		return nil, eris.Wrap(err, "workflow: persist students")
	}
	return audience.BuildSegments(cleaned, cfg.BudgetLimit, now), nil
}

// StopCampaign halts monitoring and the pattern run and marks the campaign
// stopped.
func (o *Orchestrator) StopCampaign(ctx context.Context, campaignID string) error {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	o.monitor.Stop(campaignID)
	if campaign.PatternID != "" {
		o.engine.Stop(campaign.PatternID)
	}

	o.mu.Lock()
	delete(o.patterns, campaignID)
	o.mu.Unlock()

	if err := o.store.UpdateCampaignStatus(ctx, campaignID, model.CampaignStopped); err != nil {
		return eris.Wrap(err, "workflow: update campaign status")
	}
	zap.L().Info("campaign stopped", zap.String("campaign_id", campaignID))
	return nil
}

// Status returns the merged live view of a campaign: persisted record,
// pattern progress, trailing performance, error statistics, and any open
// circuit breakers.
func (o *Orchestrator) Status(ctx context.Context, campaignID string) (CampaignStatus, error) {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return CampaignStatus{}, err
	}

	status := CampaignStatus{
		Campaign:     *campaign,
		Performance:  monitoring.Summarize(o.metrics, o.alerter, campaignID, 24*time.Hour),
		Errors:       o.recovery.Statistics(time.Hour),
		OpenBreakers: o.recovery.Breakers().Open(),
	}
	if campaign.PatternID != "" {
		// The pattern run is in-memory; after a restart only the
		// persisted record remains.
		if ps, err := o.engine.Status(campaign.PatternID); err == nil {
			status.Pattern = ps
		}
	}
	return status, nil
}

// ListCampaigns returns persisted campaigns matching the filter.
func (o *Orchestrator) ListCampaigns(ctx context.Context, filter store.CampaignFilter) ([]model.Campaign, error) {
	return o.store.ListCampaigns(ctx, filter)
}

// ROI computes the campaign's current ROI from the ledger.
func (o *Orchestrator) ROI(campaignID string) roi.Calculation {
	return o.calc.Calculate(campaignID)
}

// Performance summarizes the campaign's metrics over the trailing window.
func (o *Orchestrator) Performance(campaignID string, window time.Duration) monitoring.PerformanceSummary {
	return monitoring.Summarize(o.metrics, o.alerter, campaignID, window)
}

// Analyze produces the campaign's optimization analysis.
func (o *Orchestrator) Analyze(campaignID string) optimize.Analysis {
	return o.optimizer.Analyze(campaignID)
}

// Adapt runs an optimization analysis, applies its immediate and
// risk-mitigation actions, and folds the successful changes into the pending
// steps of the campaign's live pattern, publishing each recommendation.
func (o *Orchestrator) Adapt(ctx context.Context, campaignID string) AdaptationReport {
	analysis := o.optimizer.Analyze(campaignID)
	report := AdaptationReport{Analysis: analysis}

	actions := make([]optimize.Opportunity, 0,
		len(analysis.Opportunities.ImmediateActions)+len(analysis.Opportunities.RiskMitigation))
	actions = append(actions, analysis.Opportunities.ImmediateActions...)
	actions = append(actions, analysis.Opportunities.RiskMitigation...)
	for _, opp := range actions {
		report.Applied = append(report.Applied, o.optimizer.Implement(campaignID, opp.Action))
	}

	adjustments := make(map[string]any)
	for _, res := range report.Applied {
		if res.Success {
			adjustments[res.Action] = res.ChangesMade
		}
	}
	if len(adjustments) > 0 {
		o.mu.Lock()
		patternID, ok := o.patterns[campaignID]
		o.mu.Unlock()
		if ok {
			n, err := o.engine.Adjust(patternID, adjustments)
			if err != nil {
				zap.L().Warn("workflow: adjust pattern steps failed",
					zap.String("campaign_id", campaignID), zap.Error(err))
			}
			report.AdjustedSteps = n
		}
	}

	for _, rec := range analysis.Recommendations {
		o.notifier.Publish(ctx, notify.Event{
			Kind:       notify.EventRecommendation,
			CampaignID: campaignID,
			Message:    rec,
			Details:    map[string]any{"priority_score": analysis.PriorityScore},
		})
	}
	return report
}

// RecordMetric stores one telemetry sample and evaluates alert thresholds.
func (o *Orchestrator) RecordMetric(campaignID string, metric monitoring.MetricType, value float64) {
	o.metrics.Record(monitoring.MetricPoint{
		Timestamp:  o.nowFunc().UTC(),
		MetricType: metric,
		Value:      value,
		CampaignID: campaignID,
	})
	o.alerter.Evaluate(campaignID, metric, value)
}

// TrackInvestment appends a campaign investment to the ledger.
func (o *Orchestrator) TrackInvestment(ctx context.Context, campaignID string, amount float64, category string) {
	o.ledger.TrackInvestment(ctx, campaignID, amount, category)
}

// TrackConversion appends a conversion to the ledger.
func (o *Orchestrator) TrackConversion(ctx context.Context, campaignID, studentID string, revenue float64, conversionType string) {
	o.ledger.TrackConversion(ctx, campaignID, studentID, revenue, conversionType)
}

// LoadLedger hydrates the in-memory ledger from the store, for campaigns
// that predate this process.
func (o *Orchestrator) LoadLedger(ctx context.Context, campaignID string) error {
	var (
		invs  []model.Investment
		convs []model.Conversion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invs, err = o.store.ListInvestments(gctx, campaignID)
		return err
	})
	g.Go(func() error {
		var err error
		convs, err = o.store.ListConversions(gctx, campaignID)
		return err
	})
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "workflow: load ledger")
	}
	o.ledger.Load(campaignID, invs, convs)
	return nil
}

// Wait blocks until the campaign's pattern run finishes. Unknown campaigns
// return immediately.
func (o *Orchestrator) Wait(campaignID string) {
	o.mu.Lock()
	patternID, ok := o.patterns[campaignID]
	o.mu.Unlock()
	if ok {
		o.engine.Wait(patternID)
	}
}

// ErrorStatistics reports handled-error statistics over the trailing window.
func (o *Orchestrator) ErrorStatistics(window time.Duration) recovery.Statistics {
	return o.recovery.Statistics(window)
}

// ResetBreaker resets the named component's circuit breaker. Returns false
// if no breaker exists for the component.
func (o *Orchestrator) ResetBreaker(component string) bool {
	return o.recovery.ResetCircuitBreaker(component)
}

// Close stops all monitoring loops and cancels running patterns. The store
// is owned by the caller and is not closed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	patterns := make([]string, 0, len(o.patterns))
	for _, id := range o.patterns {
		patterns = append(patterns, id)
	}
	o.patterns = make(map[string]string)
	o.mu.Unlock()

	for _, id := range patterns {
		o.engine.Stop(id)
	}
	o.monitor.StopAll()
	o.cancel()
}

// sample feeds the monitoring loop with ledger-derived metrics. Delivery,
// response, and conversion rates arrive through telemetry instead.
func (o *Orchestrator) sample(_ context.Context, campaignID string) (map[monitoring.MetricType]float64, error) {
	calc := o.calc.Calculate(campaignID)
	out := map[monitoring.MetricType]float64{
		monitoring.MetricROI: calc.ROIPercentage,
	}
	if calc.Breakdown.TotalConversions > 0 && calc.TotalInvestment > 0 {
		out[monitoring.MetricCostPerAcq] = calc.TotalInvestment / float64(calc.Breakdown.TotalConversions)
	}
	return out, nil
}

func (o *Orchestrator) handleWorkflowError(ctx context.Context, err error, campaignID, operation string) {
	o.recovery.HandleError(ctx, err, recovery.ErrorContext{
		Timestamp:  o.nowFunc().UTC(),
		CampaignID: campaignID,
		Component:  "workflow-orchestrator",
		Operation:  operation,
	})
}

package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSampleInterval = 30 * time.Second
	errorBackoffInterval  = 60 * time.Second
)

// Sampler collects the current metric values for a campaign.
type Sampler func(ctx context.Context, campaignID string) (map[MetricType]float64, error)

// Monitor runs one cancellable sampling loop per active campaign. Each tick
// it records the sampled values and evaluates alert thresholds; after a
// sampling error it backs off to a longer interval instead of busy-looping.
type Monitor struct {
	store   *MetricStore
	alerter *Alerter
	sampler Sampler

	interval time.Duration
	backoff  time.Duration

	mu    sync.Mutex
	stops map[string]context.CancelFunc
	wg    sync.WaitGroup
}

// NewMonitor creates a monitor sampling with the given function.
func NewMonitor(store *MetricStore, alerter *Alerter, sampler Sampler) *Monitor {
	return &Monitor{
		store:    store,
		alerter:  alerter,
		sampler:  sampler,
		interval: defaultSampleInterval,
		backoff:  errorBackoffInterval,
		stops:    make(map[string]context.CancelFunc),
	}
}

// Start launches the sampling loop for a campaign. Starting an already
// monitored campaign restarts its loop.
func (m *Monitor) Start(ctx context.Context, campaignID string) {
	m.mu.Lock()
	if cancel, ok := m.stops[campaignID]; ok {
		cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.stops[campaignID] = cancel
	m.mu.Unlock()

	zap.L().Info("started performance monitoring", zap.String("campaign_id", campaignID))

	m.wg.Add(1)
	go m.loop(loopCtx, campaignID)
}

// Stop cancels the campaign's sampling loop. Returns false if the campaign
// was not being monitored.
func (m *Monitor) Stop(campaignID string) bool {
	m.mu.Lock()
	cancel, ok := m.stops[campaignID]
	if ok {
		delete(m.stops, campaignID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	zap.L().Info("performance monitoring stopped", zap.String("campaign_id", campaignID))
	return true
}

// StopAll cancels every loop and waits for them to exit.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	for id, cancel := range m.stops {
		cancel()
		delete(m.stops, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context, campaignID string) {
	defer m.wg.Done()

	wait := time.Duration(0) // sample immediately on start
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := m.sampleOnce(ctx, campaignID); err != nil {
			zap.L().Error("monitoring sample failed",
				zap.String("campaign_id", campaignID),
				zap.Error(err),
			)
			wait = m.backoff
			continue
		}
		wait = m.interval
	}
}

func (m *Monitor) sampleOnce(ctx context.Context, campaignID string) error {
	values, err := m.sampler(ctx, campaignID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, metric := range AllMetricTypes {
		value, ok := values[metric]
		if !ok {
			continue
		}
		m.store.Record(MetricPoint{
			Timestamp:  now,
			MetricType: metric,
			Value:      value,
			CampaignID: campaignID,
		})
		m.alerter.Evaluate(campaignID, metric, value)
	}
	return nil
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/monitoring"
	"github.com/reengage-labs/campaign-cli/internal/notify"
	"github.com/reengage-labs/campaign-cli/internal/store"
	"github.com/reengage-labs/campaign-cli/internal/workflow"
)

// appEnv holds the initialized store and orchestrator shared by the
// campaign/serve/roi/optimize commands.
type appEnv struct {
	Store        store.Store
	Orchestrator *workflow.Orchestrator
	Notifier     *notify.Notifier
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Orchestrator != nil {
		e.Orchestrator.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp sets up the store, alert thresholds, and the orchestrator.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	thresholds, err := monitoring.LoadThresholds(cfg.Monitoring.ThresholdsPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notifier := notify.NewNotifier()
	if cfg.Notify.WebhookURL != "" {
		notifier.Subscribe(notify.NewWebhook(cfg.Notify.WebhookURL))
		zap.L().Info("webhook notifications enabled")
	}

	return &appEnv{
		Store:        st,
		Orchestrator: workflow.New(st, thresholds, cfg.Monitoring.HistoryLimit, notifier),
		Notifier:     notifier,
	}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		zap.L().Debug("using postgres store")
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		zap.L().Debug("using sqlite store", zap.String("path", cfg.Store.Path))
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

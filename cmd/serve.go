package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/monitoring"
	"github.com/reengage-labs/campaign-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the campaign API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *appEnv) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/campaigns", handleStartCampaign(env))
		r.Get("/campaigns", handleListCampaigns(env))
		r.Route("/campaigns/{id}", func(r chi.Router) {
			r.Get("/status", handleCampaignStatus(env))
			r.Get("/roi", handleCampaignROI(env))
			r.Get("/performance", handleCampaignPerformance(env))
			r.Get("/optimization", handleCampaignOptimization(env))
			r.Post("/stop", handleStopCampaign(env))
		})

		r.Post("/telemetry/delivery", handleTelemetryMetric(env, monitoring.MetricDeliveryRate))
		r.Post("/telemetry/response", handleTelemetryMetric(env, monitoring.MetricResponseRate))
		r.Post("/telemetry/conversion", handleTelemetryConversion(env))

		r.Get("/errors/stats", handleErrorStats(env))
		r.Post("/errors/breakers/{component}/reset", handleBreakerReset(env))
	})

	return r
}

func handleStartCampaign(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.CampaignConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ROITarget == 0 {
			req.ROITarget = cfg.Campaign.ROITarget
		}
		if req.BudgetLimit == 0 {
			req.BudgetLimit = cfg.Campaign.BudgetLimit
		}
		if req.TimeConstraints.HorizonDays == 0 {
			req.TimeConstraints.HorizonDays = cfg.Campaign.HorizonDays
		}

		res, err := env.Orchestrator.StartCampaign(r.Context(), req)
		if err != nil {
			zap.L().Error("start campaign failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func handleListCampaigns(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.CampaignFilter{
			Status: model.CampaignStatus(r.URL.Query().Get("status")),
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			filter.Limit, _ = strconv.Atoi(limit)
		}

		campaigns, err := env.Orchestrator.ListCampaigns(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns, "count": len(campaigns)})
	}
}

func handleCampaignStatus(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := env.Orchestrator.Status(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleCampaignROI(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := env.Orchestrator.LoadLedger(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, env.Orchestrator.ROI(id))
	}
}

func handleCampaignPerformance(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := 24 * time.Hour
		if hours := r.URL.Query().Get("window_hours"); hours != "" {
			if h, err := strconv.Atoi(hours); err == nil && h > 0 {
				window = time.Duration(h) * time.Hour
			}
		}
		writeJSON(w, http.StatusOK, env.Orchestrator.Performance(chi.URLParam(r, "id"), window))
	}
}

func handleCampaignOptimization(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Orchestrator.Analyze(chi.URLParam(r, "id")))
	}
}

func handleStopCampaign(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := env.Orchestrator.StopCampaign(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "campaign_id": id})
	}
}

func handleTelemetryMetric(env *appEnv, metric monitoring.MetricType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CampaignID string  `json:"campaign_id"`
			Value      float64 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CampaignID == "" {
			writeError(w, http.StatusBadRequest, "campaign_id is required")
			return
		}

		env.Orchestrator.RecordMetric(req.CampaignID, metric, req.Value)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

func handleTelemetryConversion(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CampaignID     string  `json:"campaign_id"`
			StudentID      string  `json:"student_id"`
			Revenue        float64 `json:"revenue"`
			ConversionType string  `json:"conversion_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CampaignID == "" {
			writeError(w, http.StatusBadRequest, "campaign_id is required")
			return
		}

		env.Orchestrator.TrackConversion(r.Context(), req.CampaignID, req.StudentID, req.Revenue, req.ConversionType)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

func handleErrorStats(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := time.Hour
		if hours := r.URL.Query().Get("window_hours"); hours != "" {
			if h, err := strconv.Atoi(hours); err == nil && h > 0 {
				window = time.Duration(h) * time.Hour
			}
		}
		writeJSON(w, http.StatusOK, env.Orchestrator.ErrorStatistics(window))
	}
}

func handleBreakerReset(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		component := chi.URLParam(r, "component")
		if !env.Orchestrator.ResetBreaker(component) {
			writeError(w, http.StatusNotFound, "no circuit breaker for component "+component)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "component": component})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

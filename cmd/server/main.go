package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgetensor/fleetdash/internal/apiclient"
	"github.com/edgetensor/fleetdash/internal/config"
	"github.com/edgetensor/fleetdash/internal/dashboard"
	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/handlers"
	"github.com/edgetensor/fleetdash/internal/logging"
	"github.com/edgetensor/fleetdash/internal/matrack"
	"github.com/edgetensor/fleetdash/internal/media"
	_ "github.com/edgetensor/fleetdash/internal/metrics" // Initialize metrics
	"github.com/edgetensor/fleetdash/internal/server"
	"github.com/edgetensor/fleetdash/internal/services"
	"github.com/edgetensor/fleetdash/internal/websocket"
	"github.com/edgetensor/fleetdash/internal/worker"
)

func main() {
	// Initialize structured logging
	logging.InitLogger()

	slog.Info("starting fleet dashboard")

	// Load configuration from environment and config file
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded successfully")

	// Initialize database connection (GORM runs migrations on open)
	dbConn, err := db.OpenDatabase(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		slog.Error("failed to get underlying database connection", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	slog.Info("database connection established", "driver", cfg.Database.Driver)

	// Initialize Redis cache
	redisClient, err := db.NewRedisClient(cfg.Redis.URL, cfg.Redis.KeyPrefix)
	if err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("redis connection established", "key_prefix", cfg.Redis.KeyPrefix)

	conns := db.NewConnections(dbConn, redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live map viewers on this instance, fed by fleet events from any replica
	hub := websocket.NewHub(redisClient)

	// Dashboard views read through the REST API of this server
	dashboardAPI := apiclient.New(cfg.Dashboard.APIBaseURL, cfg.API.Key, cfg.Dashboard.RequestTimeout)
	store := dashboard.NewStore(dashboardAPI)
	liveMap := dashboard.NewLiveMap(store, dashboardAPI, hub.Notifier(), cfg.Dashboard.PollInterval)
	liveMap.OnChange(func(state dashboard.MapState) {
		hub.BroadcastLocal(websocket.MapStateMessage(state))
	})

	hub.OnFleetEvent(func(ctx context.Context, msg websocket.Message) {
		if msg.Type != websocket.TypeDevicesUpdated {
			return
		}
		go func() {
			if err := liveMap.Refresh(ctx); err != nil {
				slog.Warn("dashboard.live_map.refresh_failed",
					"component", "dashboard",
					"event", "live_map.refresh_error",
					"error", err,
				)
			}
		}()
	})

	// Matrack ingest
	var scheduler *worker.Scheduler
	if cfg.Ingest.Enabled {
		blocks := matrack.NewPrometheusBlockDecorator(matrack.NewRedisBlockStore(redisClient))
		matrackClient := matrack.NewClient(
			cfg.Matrack.BaseURL,
			cfg.Matrack.ClientID,
			cfg.Matrack.ClientSecret,
			cfg.Matrack.Timeout,
			blocks,
			matrack.NewPrometheusLatencyRecorder(),
		)
		ingest := worker.NewIngestService(conns, matrackClient, cfg.Ingest.LockTTL, hub.PublishDevicesUpdated)
		scheduler = worker.NewScheduler(worker.SchedulerConfig{
			RealtimeInterval:   cfg.Ingest.RealtimeInterval,
			HistoricalInterval: cfg.Ingest.HistoricalInterval,
		}, ingest, false)
	} else {
		slog.Info("matrack ingest disabled")
	}

	// Create handler dependencies
	deps := &handlers.Dependencies{
		Config:       cfg,
		Conns:        conns,
		Devices:      services.NewDeviceService(conns, cfg.API.CacheTTL),
		Signer:       media.NewSigner(cfg.Media.BaseURL, cfg.Media.SigningKey, cfg.Media.URLTTL),
		Storage:      media.NewStorage(cfg.Media.Root),
		DashboardAPI: dashboardAPI,
		LiveMap:      liveMap,
		Hub:          hub,
	}

	// Create and configure HTTP server
	srv := server.NewServer(cfg, deps)

	// Create and configure metrics/health server (internal only)
	metricsSrv := server.NewMetricsServer(cfg, deps)

	// Start metrics server in a goroutine
	go func() {
		slog.Info("metrics server listening", "address", metricsSrv.Addr, "port", cfg.Server.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
			os.Exit(1)
		}
	}()

	// Start main server in a goroutine
	go func() {
		slog.Info("server listening", "address", srv.Addr, "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Background work starts once the API is being served, since the live
	// map polls it.
	go hub.Run(ctx)
	go liveMap.Run(ctx)
	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			slog.Error("failed to start ingest scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("received shutdown signal, shutting down gracefully")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown both servers concurrently
	errChan := make(chan error, 2)
	go func() {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("main server shutdown error: %w", err)
		} else {
			errChan <- nil
		}
	}()
	go func() {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("metrics server shutdown error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	// Wait for both shutdowns to complete
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil {
			slog.Error("server forced to shutdown", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("servers exited successfully")
}

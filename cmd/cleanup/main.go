package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/edgetensor/fleetdash/internal/config"
	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/db/locationstore"
	"github.com/edgetensor/fleetdash/internal/logging"
)

func main() {
	// Initialize structured logging
	logging.InitLogger()

	// Parse command line flags
	retentionDays := flag.Int("retention-days", 90, "Days of realtime location samples to keep")
	flag.Parse()

	slog.Info("starting database cleanup",
		"retention_days", *retentionDays,
	)

	// Load minimal configuration (only the database)
	cfg, err := config.LoadMinimal()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

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

	conns := db.NewConnections(dbConn, nil)
	slog.Info("database connection established")

	cutoff := time.Now().UTC().Add(-time.Duration(*retentionDays) * 24 * time.Hour)
	slog.Info("deleting old realtime locations", "cutoff", cutoff)

	deleted, err := locationstore.DeleteOlderThan(context.Background(), conns, cutoff)
	if err != nil {
		slog.Error("failed to delete old realtime locations", "error", err)
		sqlDB.Close()
		os.Exit(1)
	}

	slog.Info("database cleanup completed successfully", "deleted", deleted)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/db/alarmstore"
	"github.com/edgetensor/fleetdash/internal/db/devicestore"
	"github.com/edgetensor/fleetdash/internal/db/locationstore"
	"github.com/edgetensor/fleetdash/internal/db/tripstore"
	"github.com/edgetensor/fleetdash/internal/matrack"
	"github.com/edgetensor/fleetdash/internal/metrics"
	"github.com/edgetensor/fleetdash/internal/services"
)

const (
	JobRealtime   = "realtime"
	JobHistorical = "historical"
)

// Upstream is the subset of the Matrack client used by ingest.
type Upstream interface {
	ListDevices(ctx context.Context) ([]matrack.DeviceData, error)
	GetRealtime(ctx context.Context, deviceID string) (*matrack.RealtimeData, error)
	ListTrips(ctx context.Context, deviceID string) ([]matrack.TripData, error)
	ListAlarms(ctx context.Context, deviceID string) ([]matrack.AlarmData, error)
}

// SyncResult summarises one ingest run.
type SyncResult struct {
	Devices   int
	Locations int
	Trips     int
	Alarms    int
	Failed    int // devices whose per-device fetch failed
	Skipped   bool
}

// IngestService copies Matrack data into the database.
type IngestService struct {
	conns    *db.Connections
	upstream Upstream
	lockTTL  time.Duration
	onUpdate func(ctx context.Context)
	now      func() time.Time
}

// NewIngestService creates an ingest service. onUpdate, if non-nil, is called
// after a realtime sync has written new positions.
func NewIngestService(conns *db.Connections, upstream Upstream, lockTTL time.Duration, onUpdate func(ctx context.Context)) *IngestService {
	return &IngestService{
		conns:    conns,
		upstream: upstream,
		lockTTL:  lockTTL,
		onUpdate: onUpdate,
		now:      time.Now,
	}
}

// SyncRealtime upserts the device list and records one position sample per device.
//
// Algorithm:
//  1. Acquire the realtime job lock (skip quietly if another replica holds it)
//  2. List devices from Matrack and upsert them
//  3. For each device fetch the realtime fix, insert it and update the device position
//  4. Invalidate the cached device list and notify live map viewers
func (s *IngestService) SyncRealtime(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, JobRealtime, s.syncRealtime)
}

// SyncHistorical upserts trips and alarms for every device.
func (s *IngestService) SyncHistorical(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, JobHistorical, s.syncHistorical)
}

func (s *IngestService) run(ctx context.Context, job string, fn func(context.Context, *slog.Logger, *SyncResult) error) (*SyncResult, error) {
	startTime := time.Now()
	defer func() {
		metrics.IngestDuration.WithLabelValues(job).Observe(time.Since(startTime).Seconds())
	}()

	logger := slog.With(
		"component", "worker.ingest",
		"job", job,
	)

	result := &SyncResult{}

	if s.conns.Redis != nil {
		lock := NewJobLock(s.conns.Redis, job, s.lockTTL)
		acquired, err := lock.TryAcquire(ctx)
		if err != nil {
			logger.Error("worker.ingest.lock_error",
				"event", "ingest.lock_error",
				"error", err,
			)
			metrics.IngestRuns.WithLabelValues(job, "error").Inc()
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !acquired {
			// Another replica is already running this job, skip
			logger.Debug("worker.ingest.already_locked",
				"event", "ingest.already_locked",
			)
			metrics.IngestRuns.WithLabelValues(job, "skipped").Inc()
			result.Skipped = true
			return result, nil
		}
		defer func() {
			// Release with a fresh context so a cancelled run still frees the lock.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				logger.Error("worker.ingest.lock_release_error",
					"event", "ingest.lock_release_error",
					"error", err,
				)
			}
		}()
	}

	if err := fn(ctx, logger, result); err != nil {
		logger.Error("worker.ingest.failed",
			"event", "ingest.error",
			"error", err,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
		metrics.IngestRuns.WithLabelValues(job, "error").Inc()
		return result, err
	}

	logger.Info("worker.ingest.completed",
		"event", "ingest.completed",
		"devices", result.Devices,
		"locations", result.Locations,
		"trips", result.Trips,
		"alarms", result.Alarms,
		"failed_devices", result.Failed,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	metrics.IngestRuns.WithLabelValues(job, "success").Inc()
	return result, nil
}

// syncDevices fetches and upserts the device list.
func (s *IngestService) syncDevices(ctx context.Context, result *SyncResult) ([]matrack.DeviceData, error) {
	devices, err := s.upstream.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	for _, d := range devices {
		if d.DeviceID == "" {
			continue
		}
		row := d.ToDevice()
		if err := devicestore.Upsert(ctx, s.conns, &row); err != nil {
			return nil, fmt.Errorf("failed to upsert device %s: %w", d.DeviceID, err)
		}
		result.Devices++
	}
	metrics.IngestRecords.WithLabelValues("device").Add(float64(result.Devices))
	return devices, nil
}

func (s *IngestService) syncRealtime(ctx context.Context, logger *slog.Logger, result *SyncResult) error {
	devices, err := s.syncDevices(ctx, result)
	if err != nil {
		return err
	}

	for _, d := range devices {
		if d.DeviceID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fix, err := s.upstream.GetRealtime(ctx, d.DeviceID)
		if err != nil {
			if isFatalUpstream(err) {
				return err
			}
			logger.Warn("worker.ingest.realtime_fetch_failed",
				"event", "ingest.device_error",
				"device_id", d.DeviceID,
				"error", err,
			)
			result.Failed++
			continue
		}
		if fix == nil {
			continue
		}

		loc := fix.ToLocation(d.DeviceID, s.now())
		if err := locationstore.Create(ctx, s.conns, &loc); err != nil {
			return fmt.Errorf("failed to store location for %s: %w", d.DeviceID, err)
		}
		if err := devicestore.UpdatePosition(ctx, s.conns, d.DeviceID, loc.Lat, loc.Lng); err != nil {
			return fmt.Errorf("failed to update position for %s: %w", d.DeviceID, err)
		}
		result.Locations++
	}
	metrics.IngestRecords.WithLabelValues("location").Add(float64(result.Locations))

	services.InvalidateDeviceCache(ctx, s.conns.Redis)
	if s.onUpdate != nil {
		s.onUpdate(ctx)
	}
	return nil
}

func (s *IngestService) syncHistorical(ctx context.Context, logger *slog.Logger, result *SyncResult) error {
	devices, err := s.syncDevices(ctx, result)
	if err != nil {
		return err
	}

	for _, d := range devices {
		if d.DeviceID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		trips, tripErr := s.upstream.ListTrips(ctx, d.DeviceID)
		if tripErr == nil {
			rows := make([]db.Trip, 0, len(trips))
			for _, t := range trips {
				if t.TripID != "" {
					rows = append(rows, t.ToTrip(d.DeviceID))
				}
			}
			if err := tripstore.Upsert(ctx, s.conns, rows); err != nil {
				return fmt.Errorf("failed to upsert trips for %s: %w", d.DeviceID, err)
			}
			result.Trips += len(rows)
		}

		alarms, alarmErr := s.upstream.ListAlarms(ctx, d.DeviceID)
		if alarmErr == nil {
			rows := make([]db.Alarm, 0, len(alarms))
			for _, a := range alarms {
				if a.AlarmID != "" {
					rows = append(rows, a.ToAlarm(d.DeviceID))
				}
			}
			if err := alarmstore.Upsert(ctx, s.conns, rows); err != nil {
				return fmt.Errorf("failed to upsert alarms for %s: %w", d.DeviceID, err)
			}
			result.Alarms += len(rows)
		}

		if fetchErr := errors.Join(tripErr, alarmErr); fetchErr != nil {
			if isFatalUpstream(fetchErr) {
				return fetchErr
			}
			logger.Warn("worker.ingest.historical_fetch_failed",
				"event", "ingest.device_error",
				"device_id", d.DeviceID,
				"error", fetchErr,
			)
			result.Failed++
		}
	}
	metrics.IngestRecords.WithLabelValues("trip").Add(float64(result.Trips))
	metrics.IngestRecords.WithLabelValues("alarm").Add(float64(result.Alarms))
	return nil
}

// isFatalUpstream reports errors that will fail for every device, so the run
// should stop rather than hammer Matrack.
func isFatalUpstream(err error) bool {
	var limited *matrack.ErrRateLimited
	return errors.Is(err, matrack.ErrServiceBlocked) ||
		errors.Is(err, matrack.ErrUnauthorized) ||
		errors.As(err, &limited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

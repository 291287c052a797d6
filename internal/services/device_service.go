package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/db/alarmstore"
	"github.com/edgetensor/fleetdash/internal/db/devicestore"
	"github.com/edgetensor/fleetdash/internal/db/locationstore"
	"github.com/edgetensor/fleetdash/internal/db/tripstore"
	"github.com/edgetensor/fleetdash/internal/metrics"
	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/redis/go-redis/v9"
)

// DeviceListCacheKey holds the JSON encoded device list served by the REST API.
const DeviceListCacheKey = "cache:devices"

// ErrNoLocation is returned when a device has no realtime samples yet.
var ErrNoLocation = errors.New("no location found for this device")

// DeviceService reads fleet data for the REST API. The device list is cached
// in Redis for a short TTL; ingest invalidates it after each realtime sync.
type DeviceService struct {
	conns    *db.Connections
	cacheTTL time.Duration
}

func NewDeviceService(conns *db.Connections, cacheTTL time.Duration) *DeviceService {
	return &DeviceService{
		conns:    conns,
		cacheTTL: cacheTTL,
	}
}

// ListDevices returns every known device with its last known position.
func (s *DeviceService) ListDevices(ctx context.Context) ([]types.Device, error) {
	if cached, ok := s.getCachedDevices(ctx); ok {
		return cached, nil
	}

	rows, err := devicestore.List(ctx, s.conns)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]types.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, row.ToType())
	}

	s.cacheDevices(ctx, devices)
	return devices, nil
}

// LatestLocation returns the newest realtime sample for a device, or ErrNoLocation.
func (s *DeviceService) LatestLocation(ctx context.Context, deviceID string) (*types.Location, error) {
	row, err := locationstore.Latest(ctx, s.conns, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest location: %w", err)
	}
	if row == nil {
		return nil, ErrNoLocation
	}
	loc := row.ToType()
	return &loc, nil
}

// History returns the path points between start and end inclusive, ascending.
func (s *DeviceService) History(ctx context.Context, deviceID string, start, end time.Time) ([]types.TrackPoint, error) {
	rows, err := locationstore.Range(ctx, s.conns, deviceID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	points := make([]types.TrackPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, row.ToTrackPoint())
	}
	return points, nil
}

// Trips returns a device's trip summaries ordered by start time.
func (s *DeviceService) Trips(ctx context.Context, deviceID string) ([]types.Trip, error) {
	rows, err := tripstore.ListByDevice(ctx, s.conns, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}
	trips := make([]types.Trip, 0, len(rows))
	for _, row := range rows {
		trips = append(trips, row.ToType())
	}
	return trips, nil
}

// Alarms returns a device's alarms ordered by timestamp.
func (s *DeviceService) Alarms(ctx context.Context, deviceID string) ([]types.Alarm, error) {
	rows, err := alarmstore.ListByDevice(ctx, s.conns, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alarms: %w", err)
	}
	alarms := make([]types.Alarm, 0, len(rows))
	for _, row := range rows {
		alarms = append(alarms, row.ToType())
	}
	return alarms, nil
}

// InvalidateDeviceCache drops the cached device list. Best effort.
func (s *DeviceService) InvalidateDeviceCache(ctx context.Context) {
	InvalidateDeviceCache(ctx, s.conns.Redis)
}

// InvalidateDeviceCache drops the cached device list. Best effort.
func InvalidateDeviceCache(ctx context.Context, rc *db.RedisClient) {
	if rc == nil {
		return
	}
	if err := rc.Del(ctx, DeviceListCacheKey).Err(); err != nil {
		metrics.CacheOperations.WithLabelValues("invalidate", "error").Inc()
		slog.Error("device_service.cache_invalidate_failed",
			"component", "device_service",
			"event", "cache.invalidate.error",
			"error", err,
		)
		return
	}
	metrics.CacheOperations.WithLabelValues("invalidate", "ok").Inc()
}

func (s *DeviceService) getCachedDevices(ctx context.Context) ([]types.Device, bool) {
	if s.conns.Redis == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	data, err := s.conns.Redis.Get(ctx, DeviceListCacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		} else {
			metrics.CacheOperations.WithLabelValues("get", "error").Inc()
			slog.Warn("device_service.cache_read_failed",
				"component", "device_service",
				"event", "cache.get.error",
				"error", err,
			)
		}
		return nil, false
	}

	var devices []types.Device
	if err := json.Unmarshal([]byte(data), &devices); err != nil {
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		return nil, false
	}
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return devices, true
}

// cacheDevices stores the device list. This is a best effort; loss of cache is not fatal.
func (s *DeviceService) cacheDevices(ctx context.Context, devices []types.Device) {
	if s.conns.Redis == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(devices)
	if err != nil {
		slog.Error("device_service.cache_marshal_failed", "component", "device_service", "error", err)
		return
	}
	if err := s.conns.Redis.Set(ctx, DeviceListCacheKey, data, s.cacheTTL).Err(); err != nil {
		metrics.CacheOperations.WithLabelValues("set", "error").Inc()
		slog.Error("device_service.cache_write_failed",
			"component", "device_service",
			"event", "cache.set.error",
			"error", err,
		)
		return
	}
	metrics.CacheOperations.WithLabelValues("set", "ok").Inc()
}

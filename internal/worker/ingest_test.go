package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/db/alarmstore"
	"github.com/edgetensor/fleetdash/internal/db/devicestore"
	"github.com/edgetensor/fleetdash/internal/db/locationstore"
	"github.com/edgetensor/fleetdash/internal/db/tripstore"
	"github.com/edgetensor/fleetdash/internal/matrack"
	"github.com/edgetensor/fleetdash/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	mu          sync.Mutex
	devices     []matrack.DeviceData
	realtime    map[string]*matrack.RealtimeData
	realtimeErr map[string]error
	trips       map[string][]matrack.TripData
	alarms      map[string][]matrack.AlarmData
	listErr     error
	listCalls   int
}

func (f *fakeUpstream) ListDevices(ctx context.Context) ([]matrack.DeviceData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.devices, f.listErr
}

func (f *fakeUpstream) GetRealtime(ctx context.Context, deviceID string) (*matrack.RealtimeData, error) {
	if err := f.realtimeErr[deviceID]; err != nil {
		return nil, err
	}
	return f.realtime[deviceID], nil
}

func (f *fakeUpstream) ListTrips(ctx context.Context, deviceID string) ([]matrack.TripData, error) {
	return f.trips[deviceID], nil
}

func (f *fakeUpstream) ListAlarms(ctx context.Context, deviceID string) ([]matrack.AlarmData, error) {
	return f.alarms[deviceID], nil
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func newIngestHarness(t *testing.T, up *fakeUpstream, onUpdate func(context.Context)) (*IngestService, *db.Connections) {
	conns := db.SetupTestDB(t)
	rc, _ := setupTestRedis(t)
	conns.Redis = rc
	return NewIngestService(conns, up, time.Minute, onUpdate), conns
}

func TestSyncRealtime_StoresPositionsAndNotifies(t *testing.T) {
	speed := 36.0
	up := &fakeUpstream{
		devices: []matrack.DeviceData{
			{DeviceID: "d1", Name: strPtr("Van")},
			{DeviceID: "d2"},
			{DeviceID: "d3"},
			{DeviceID: ""}, // ignored
		},
		realtime: map[string]*matrack.RealtimeData{
			"d1": {DeviceID: "d1", Latitude: 51.5, Longitude: -0.12, Timestamp: "2024-05-01T12:00:00Z", Speed: &speed},
			// d2 has no fix
		},
		realtimeErr: map[string]error{
			"d3": errors.New("boom"),
		},
	}
	var notified atomic.Int32
	svc, conns := newIngestHarness(t, up, func(context.Context) { notified.Add(1) })
	ctx := context.Background()

	// Warm the cache so invalidation is observable
	require.NoError(t, conns.Redis.Set(ctx, services.DeviceListCacheKey, "[]", time.Minute).Err())

	result, err := svc.SyncRealtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Devices)
	assert.Equal(t, 1, result.Locations)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int32(1), notified.Load())

	d1, err := devicestore.Get(ctx, conns, "d1")
	require.NoError(t, err)
	require.NotNil(t, d1.LastLat)
	assert.Equal(t, 51.5, *d1.LastLat)

	d2, err := devicestore.Get(ctx, conns, "d2")
	require.NoError(t, err)
	assert.Nil(t, d2.LastLat)

	loc, err := locationstore.Latest(ctx, conns, "d1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.InDelta(t, 10.0, *loc.Speed, 1e-9, "speed stored in m/s")

	_, err = conns.Redis.Get(ctx, services.DeviceListCacheKey).Result()
	assert.Error(t, err, "device list cache should be invalidated")
}

func TestSyncRealtime_SkipsWhenLocked(t *testing.T) {
	up := &fakeUpstream{}
	svc, conns := newIngestHarness(t, up, nil)
	ctx := context.Background()

	held := NewJobLock(conns.Redis, JobRealtime, time.Minute)
	ok, err := held.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := svc.SyncRealtime(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0, up.listCalls)

	// Lock released after a normal run
	require.NoError(t, held.Release(ctx))
	_, err = svc.SyncRealtime(ctx)
	require.NoError(t, err)
	assert.False(t, conns.Redis.Client().Exists(ctx, "test:ingest:lock:realtime").Val() == 1)
}

func TestSyncRealtime_StopsOnServiceBlock(t *testing.T) {
	up := &fakeUpstream{
		devices:     []matrack.DeviceData{{DeviceID: "d1"}, {DeviceID: "d2"}},
		realtimeErr: map[string]error{"d1": matrack.ErrServiceBlocked},
	}
	var notified atomic.Int32
	svc, _ := newIngestHarness(t, up, func(context.Context) { notified.Add(1) })

	_, err := svc.SyncRealtime(context.Background())
	assert.ErrorIs(t, err, matrack.ErrServiceBlocked)
	assert.Equal(t, int32(0), notified.Load())
}

func TestSyncRealtime_ListFailure(t *testing.T) {
	up := &fakeUpstream{listErr: errors.New("upstream down")}
	svc, _ := newIngestHarness(t, up, nil)

	_, err := svc.SyncRealtime(context.Background())
	assert.ErrorContains(t, err, "upstream down")
}

func TestSyncHistorical_UpsertsTripsAndAlarms(t *testing.T) {
	up := &fakeUpstream{
		devices: []matrack.DeviceData{{DeviceID: "d1"}},
		trips: map[string][]matrack.TripData{
			"d1": {
				{TripID: "t1", StartTime: "2024-05-01T08:00:00Z", EndTime: "2024-05-01T09:00:00Z", Distance: floatPtr(12)},
				{TripID: ""},
			},
		},
		alarms: map[string][]matrack.AlarmData{
			"d1": {{AlarmID: "a1", Timestamp: "2024-05-01T08:30:00Z", AlarmType: "overspeed", MediaURL: strPtr("dashcam/a1.mp4")}},
		},
	}
	svc, conns := newIngestHarness(t, up, nil)
	ctx := context.Background()

	result, err := svc.SyncHistorical(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Trips)
	assert.Equal(t, 1, result.Alarms)

	// Running again is idempotent
	_, err = svc.SyncHistorical(ctx)
	require.NoError(t, err)

	trips, err := tripstore.ListByDevice(ctx, conns, "d1")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.True(t, trips[0].StartTime.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))

	alarms, err := alarmstore.ListByDevice(ctx, conns, "d1")
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, "dashcam/a1.mp4", *alarms[0].MediaURL)
}

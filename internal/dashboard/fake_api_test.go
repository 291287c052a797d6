package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
)

var errBoom = errors.New("boom")

// fakeAPI answers from the configured functions and counts calls per method.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	listDevices func(ctx context.Context) ([]types.Device, error)
	location    func(ctx context.Context, id string) (*types.Location, error)
	history     func(ctx context.Context, id string, start, end time.Time) ([]types.TrackPoint, error)
	trips       func(ctx context.Context, id string) ([]types.Trip, error)
	alarms      func(ctx context.Context, id string) ([]types.Alarm, error)
	signedURL   func(ctx context.Context, path string) (string, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) ListDevices(ctx context.Context) ([]types.Device, error) {
	f.count("devices")
	if f.listDevices == nil {
		return []types.Device{}, nil
	}
	return f.listDevices(ctx)
}

func (f *fakeAPI) DeviceLocation(ctx context.Context, id string) (*types.Location, error) {
	f.count("location")
	if f.location == nil {
		return &types.Location{DeviceID: id}, nil
	}
	return f.location(ctx, id)
}

func (f *fakeAPI) DeviceHistory(ctx context.Context, id string, start, end time.Time) ([]types.TrackPoint, error) {
	f.count("history")
	if f.history == nil {
		return []types.TrackPoint{}, nil
	}
	return f.history(ctx, id, start, end)
}

func (f *fakeAPI) DeviceTrips(ctx context.Context, id string) ([]types.Trip, error) {
	f.count("trips")
	if f.trips == nil {
		return []types.Trip{}, nil
	}
	return f.trips(ctx, id)
}

func (f *fakeAPI) DeviceAlarms(ctx context.Context, id string) ([]types.Alarm, error) {
	f.count("alarms")
	if f.alarms == nil {
		return []types.Alarm{}, nil
	}
	return f.alarms(ctx, id)
}

func (f *fakeAPI) SignedURL(ctx context.Context, path string) (string, error) {
	f.count("signed_url")
	if f.signedURL == nil {
		return "https://media.example.com/" + path + "?token=t", nil
	}
	return f.signedURL(ctx, path)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func positioned(id string, lat, lng float64) types.Device {
	return types.Device{DeviceID: id, Lat: floatPtr(lat), Lng: floatPtr(lng)}
}

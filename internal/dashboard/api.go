// Package dashboard holds the server-side view models of the operator
// dashboard. Each view owns its request lifecycle (loading, error, data) and
// talks to the fleet REST API through API; only the device list and the
// selection live in the shared Store.
package dashboard

import (
	"context"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
)

// API is the fleet REST API as seen by the dashboard views.
type API interface {
	ListDevices(ctx context.Context) ([]types.Device, error)
	DeviceLocation(ctx context.Context, deviceID string) (*types.Location, error)
	DeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.TrackPoint, error)
	DeviceTrips(ctx context.Context, deviceID string) ([]types.Trip, error)
	DeviceAlarms(ctx context.Context, deviceID string) ([]types.Alarm, error)
	SignedURL(ctx context.Context, filePath string) (string, error)
}

// LatLng is a map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FallbackCenter is where maps center when there is nothing to show.
var FallbackCenter = LatLng{Lat: 37.7749, Lng: -122.4194}

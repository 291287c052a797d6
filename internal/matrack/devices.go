package matrack

import (
	"context"
	"fmt"
	"net/http"
)

// envelope is the wrapper Matrack puts around every payload.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// DeviceData is a device as listed by Matrack.
type DeviceData struct {
	DeviceID     string  `json:"device_id"`
	Name         *string `json:"name"`
	LicensePlate *string `json:"license_plate"`
	IMEI         *string `json:"imei"`
}

// RealtimeData is the current fix for a device. Speed is km/h.
type RealtimeData struct {
	DeviceID       string   `json:"device_id"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Timestamp      string   `json:"timestamp"`
	Speed          *float64 `json:"speed"`
	Heading        *float64 `json:"heading"`
	IgnitionStatus *int     `json:"ignition_status"`
}

// TripData is a trip summary. Times are ISO 8601 strings.
type TripData struct {
	TripID    string   `json:"trip_id"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	StartLat  *float64 `json:"start_lat"`
	StartLng  *float64 `json:"start_lng"`
	EndLat    *float64 `json:"end_lat"`
	EndLng    *float64 `json:"end_lng"`
	Distance  *float64 `json:"distance"`
}

// AlarmData is an alarm event. MediaURL is a storage path.
type AlarmData struct {
	AlarmID   string   `json:"alarm_id"`
	Timestamp string   `json:"timestamp"`
	AlarmType string   `json:"alarm_type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	MediaURL  *string  `json:"media_url"`
}

// get performs a GET and unwraps the envelope.
func get[T any](ctx context.Context, c *Client, path, endpoint string) (T, error) {
	var env envelope[T]
	resp, err := c.Request(ctx, http.MethodGet, &env, WithPath(path), WithEndpoint(endpoint))
	if err != nil {
		var zero T
		return zero, err
	}
	if !env.Status {
		var zero T
		return zero, &ErrAPI{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}

// devicePath builds a per-device path. Request sets it as url.URL.Path, which
// escapes it on the wire.
func devicePath(deviceID, suffix string) string {
	return fmt.Sprintf("/devices/%s%s", deviceID, suffix)
}

// ListDevices returns every device on the account
func (c *Client) ListDevices(ctx context.Context) ([]DeviceData, error) {
	return get[[]DeviceData](ctx, c, "/devices", "devices")
}

// GetDevice returns a single device's static information
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*DeviceData, error) {
	return get[*DeviceData](ctx, c, devicePath(deviceID, ""), "device")
}

// GetRealtime returns the current fix for a device, or nil when Matrack has
// no fix for it.
func (c *Client) GetRealtime(ctx context.Context, deviceID string) (*RealtimeData, error) {
	return get[*RealtimeData](ctx, c, devicePath(deviceID, "/realtime"), "device_realtime")
}

// ListTrips returns the trip summaries Matrack holds for a device
func (c *Client) ListTrips(ctx context.Context, deviceID string) ([]TripData, error) {
	return get[[]TripData](ctx, c, devicePath(deviceID, "/trips"), "device_trips")
}

// ListAlarms returns the alarm events Matrack holds for a device
func (c *Client) ListAlarms(ctx context.Context, deviceID string) ([]AlarmData, error) {
	return get[[]AlarmData](ctx, c, devicePath(deviceID, "/alarms"), "device_alarms")
}

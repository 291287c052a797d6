package types

import "time"

// Device is a tracked vehicle or asset as exposed by the dashboard API.
// Lat and Lng are the last known position and are nil until the first
// realtime fix has been ingested.
type Device struct {
	DeviceID     string   `json:"device_id"`
	Name         *string  `json:"name,omitempty"`
	LicensePlate *string  `json:"license_plate,omitempty"`
	IMEI         *string  `json:"imei,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

// HasPosition reports whether both coordinates are known.
func (d Device) HasPosition() bool {
	return d.Lat != nil && d.Lng != nil
}

// DisplayName returns the best human readable label for the device.
func (d Device) DisplayName() string {
	switch {
	case d.Name != nil && *d.Name != "":
		return *d.Name
	case d.LicensePlate != nil && *d.LicensePlate != "":
		return *d.LicensePlate
	case d.IMEI != nil && *d.IMEI != "":
		return *d.IMEI
	}
	return d.DeviceID
}

// Location is a single realtime fix for a device.
type Location struct {
	ID             uint      `json:"id"`
	DeviceID       string    `json:"device_id"`
	Timestamp      time.Time `json:"timestamp"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Speed          *float64  `json:"speed,omitempty"`
	Heading        *float64  `json:"heading,omitempty"`
	IgnitionStatus *int      `json:"ignition_status,omitempty"`
}

// TrackPoint is one point of a history path.
type TrackPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
}

// Trip is a bounded interval of device movement.
type Trip struct {
	TripID    string     `json:"trip_id"`
	DeviceID  string     `json:"device_id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	StartLat  *float64   `json:"start_lat"`
	StartLng  *float64   `json:"start_lng"`
	EndLat    *float64   `json:"end_lat"`
	EndLng    *float64   `json:"end_lng"`
	Distance  *float64   `json:"distance"`
}

// Alarm is a discrete event record. MediaURL is a storage path, not a
// fetchable URL; it has to be exchanged for a signed URL first.
type Alarm struct {
	AlarmID   string     `json:"alarm_id"`
	DeviceID  string     `json:"device_id"`
	Timestamp *time.Time `json:"timestamp"`
	Type      string     `json:"type"`
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	MediaURL  *string    `json:"media_url,omitempty"`
}

// HasMedia reports whether the alarm carries a media reference.
func (a Alarm) HasMedia() bool {
	return a.MediaURL != nil && *a.MediaURL != ""
}

// SignedURLResponse is the body of GET /dashcamAlertFiles/getSignedUrl.
type SignedURLResponse struct {
	SignedURL string `json:"signedUrl"`
}

// ErrorResponse is the JSON body returned by the API on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

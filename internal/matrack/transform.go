package matrack

import (
	"strings"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/types"
)

// ParseTimestamp parses an ISO 8601 timestamp. Empty or malformed input gives nil.
func ParseTimestamp(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := types.ParseISOTime(s)
	if err != nil {
		return nil
	}
	return &t
}

// KmhToMs converts a speed in km/h to m/s
func KmhToMs(kmh *float64) *float64 {
	if kmh == nil {
		return nil
	}
	ms := *kmh * 1000 / 3600
	return &ms
}

// ToDevice maps a Matrack device onto the devices table
func (d DeviceData) ToDevice() db.Device {
	return db.Device{
		DeviceID:     d.DeviceID,
		Name:         d.Name,
		LicensePlate: d.LicensePlate,
		IMEI:         d.IMEI,
	}
}

// ToLocation maps a realtime fix onto a location sample. A fix without a
// parseable timestamp is stamped with receivedAt.
func (r RealtimeData) ToLocation(deviceID string, receivedAt time.Time) db.RealtimeLocation {
	ts := receivedAt.UTC()
	if parsed := ParseTimestamp(r.Timestamp); parsed != nil {
		ts = *parsed
	}
	return db.RealtimeLocation{
		DeviceID:       deviceID,
		Timestamp:      ts,
		Lat:            r.Latitude,
		Lng:            r.Longitude,
		Speed:          KmhToMs(r.Speed),
		Heading:        r.Heading,
		IgnitionStatus: r.IgnitionStatus,
	}
}

func (t TripData) ToTrip(deviceID string) db.Trip {
	return db.Trip{
		TripID:    t.TripID,
		DeviceID:  deviceID,
		StartTime: ParseTimestamp(t.StartTime),
		EndTime:   ParseTimestamp(t.EndTime),
		StartLat:  t.StartLat,
		StartLng:  t.StartLng,
		EndLat:    t.EndLat,
		EndLng:    t.EndLng,
		Distance:  t.Distance,
	}
}

func (a AlarmData) ToAlarm(deviceID string) db.Alarm {
	var media *string
	if a.MediaURL != nil && strings.TrimSpace(*a.MediaURL) != "" {
		media = a.MediaURL
	}
	return db.Alarm{
		AlarmID:   a.AlarmID,
		DeviceID:  deviceID,
		Timestamp: ParseTimestamp(a.Timestamp),
		AlarmType: a.AlarmType,
		Lat:       a.Latitude,
		Lng:       a.Longitude,
		MediaURL:  media,
	}
}

package db

import (
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
	"gorm.io/gorm"
)

// Device is a Matrack tracker as last seen by ingest.
type Device struct {
	DeviceID     string  `gorm:"primaryKey;column:device_id;type:varchar(255)"`
	Name         *string `gorm:"column:name;type:varchar(255)"`
	LicensePlate *string `gorm:"column:license_plate;type:varchar(64)"`
	IMEI         *string `gorm:"column:imei;type:varchar(64)"`

	// LastLat and LastLng hold the most recent realtime position. Both are nil
	// until the first realtime sync succeeds for the device.
	LastLat *float64 `gorm:"column:last_lat"`
	LastLng *float64 `gorm:"column:last_lng"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Device) TableName() string {
	return "devices"
}

// ToType converts the row to its API representation.
func (d Device) ToType() types.Device {
	return types.Device{
		DeviceID:     d.DeviceID,
		Name:         d.Name,
		LicensePlate: d.LicensePlate,
		IMEI:         d.IMEI,
		Lat:          d.LastLat,
		Lng:          d.LastLng,
	}
}

// RealtimeLocation is one position sample taken by the realtime ingest job.
type RealtimeLocation struct {
	ID             uint      `gorm:"primaryKey;column:id;autoIncrement"`
	DeviceID       string    `gorm:"column:device_id;type:varchar(255);not null;index:idx_realtime_device_time,priority:1"`
	Timestamp      time.Time `gorm:"column:timestamp;not null;index:idx_realtime_device_time,priority:2"`
	Lat            float64   `gorm:"column:lat;not null"`
	Lng            float64   `gorm:"column:lng;not null"`
	Speed          *float64  `gorm:"column:speed"` // m/s
	Heading        *float64  `gorm:"column:heading"`
	IgnitionStatus *int      `gorm:"column:ignition_status"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (RealtimeLocation) TableName() string {
	return "realtime_locations"
}

func (l RealtimeLocation) ToType() types.Location {
	return types.Location{
		ID:             l.ID,
		DeviceID:       l.DeviceID,
		Timestamp:      l.Timestamp,
		Lat:            l.Lat,
		Lng:            l.Lng,
		Speed:          l.Speed,
		Heading:        l.Heading,
		IgnitionStatus: l.IgnitionStatus,
	}
}

func (l RealtimeLocation) ToTrackPoint() types.TrackPoint {
	return types.TrackPoint{
		Lat:       l.Lat,
		Lng:       l.Lng,
		Timestamp: l.Timestamp,
		Speed:     l.Speed,
		Heading:   l.Heading,
	}
}

// Trip is a trip summary reported by Matrack.
type Trip struct {
	TripID    string     `gorm:"primaryKey;column:trip_id;type:varchar(255)"`
	DeviceID  string     `gorm:"column:device_id;type:varchar(255);not null;index"`
	StartTime *time.Time `gorm:"column:start_time;index"`
	EndTime   *time.Time `gorm:"column:end_time"`
	StartLat  *float64   `gorm:"column:start_lat"`
	StartLng  *float64   `gorm:"column:start_lng"`
	EndLat    *float64   `gorm:"column:end_lat"`
	EndLng    *float64   `gorm:"column:end_lng"`
	Distance  *float64   `gorm:"column:distance"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Trip) TableName() string {
	return "trips"
}

func (t Trip) ToType() types.Trip {
	return types.Trip{
		TripID:    t.TripID,
		DeviceID:  t.DeviceID,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		StartLat:  t.StartLat,
		StartLng:  t.StartLng,
		EndLat:    t.EndLat,
		EndLng:    t.EndLng,
		Distance:  t.Distance,
	}
}

// Alarm is a dashcam or telematics alarm event. MediaURL is a storage path,
// never a directly usable URL.
type Alarm struct {
	AlarmID   string     `gorm:"primaryKey;column:alarm_id;type:varchar(255)"`
	DeviceID  string     `gorm:"column:device_id;type:varchar(255);not null;index"`
	Timestamp *time.Time `gorm:"column:timestamp;index"`
	AlarmType string     `gorm:"column:alarm_type;type:varchar(128)"`
	Lat       *float64   `gorm:"column:lat"`
	Lng       *float64   `gorm:"column:lng"`
	MediaURL  *string    `gorm:"column:media_url;type:text"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Alarm) TableName() string {
	return "alarms"
}

func (a Alarm) ToType() types.Alarm {
	return types.Alarm{
		AlarmID:   a.AlarmID,
		DeviceID:  a.DeviceID,
		Timestamp: a.Timestamp,
		Type:      a.AlarmType,
		Lat:       a.Lat,
		Lng:       a.Lng,
		MediaURL:  a.MediaURL,
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Device{}, &RealtimeLocation{}, &Trip{}, &Alarm{})
}

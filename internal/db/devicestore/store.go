package devicestore

import (
	"context"
	"errors"

	"github.com/edgetensor/fleetdash/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// List returns every device ordered by device id
func List(ctx context.Context, conns *db.Connections) ([]db.Device, error) {
	var devices []db.Device
	err := conns.DB.WithContext(ctx).Order("device_id ASC").Find(&devices).Error
	return devices, err
}

// Get finds a device by id. Returns nil if not found.
func Get(ctx context.Context, conns *db.Connections, deviceID string) (*db.Device, error) {
	var device db.Device
	err := conns.DB.WithContext(ctx).Where("device_id = ?", deviceID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// Upsert inserts the device or refreshes its static fields. The last known
// position is left alone; it is owned by UpdatePosition.
func Upsert(ctx context.Context, conns *db.Connections, device *db.Device) error {
	return conns.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "license_plate", "imei", "updated_at"}),
	}).Create(device).Error
}

// UpdatePosition records the last known position of a device
func UpdatePosition(ctx context.Context, conns *db.Connections, deviceID string, lat, lng float64) error {
	return conns.DB.WithContext(ctx).Model(&db.Device{}).
		Where("device_id = ?", deviceID).
		Updates(map[string]interface{}{
			"last_lat": lat,
			"last_lng": lng,
		}).Error
}

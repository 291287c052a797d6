package locationstore

import (
	"context"
	"errors"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"gorm.io/gorm"
)

// Create inserts a realtime location sample
func Create(ctx context.Context, conns *db.Connections, loc *db.RealtimeLocation) error {
	return conns.DB.WithContext(ctx).Create(loc).Error
}

// Latest returns the most recent sample for a device. Returns nil if the
// device has no samples.
func Latest(ctx context.Context, conns *db.Connections, deviceID string) (*db.RealtimeLocation, error) {
	var loc db.RealtimeLocation
	err := conns.DB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC").
		Order("id DESC").
		First(&loc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loc, nil
}

// Range returns the samples for a device with start <= timestamp <= end in
// ascending time order
func Range(ctx context.Context, conns *db.Connections, deviceID string, start, end time.Time) ([]db.RealtimeLocation, error) {
	var locs []db.RealtimeLocation
	err := conns.DB.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ? AND timestamp <= ?", deviceID, start, end).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&locs).Error
	return locs, err
}

// DeleteOlderThan removes samples taken before cutoff and returns how many
// rows were deleted
func DeleteOlderThan(ctx context.Context, conns *db.Connections, cutoff time.Time) (int64, error) {
	result := conns.DB.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&db.RealtimeLocation{})
	return result.RowsAffected, result.Error
}

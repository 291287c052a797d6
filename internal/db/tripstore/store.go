package tripstore

import (
	"context"

	"github.com/edgetensor/fleetdash/internal/db"
	"gorm.io/gorm/clause"
)

// Upsert inserts or replaces trips keyed by trip id
func Upsert(ctx context.Context, conns *db.Connections, trips []db.Trip) error {
	if len(trips) == 0 {
		return nil
	}
	return conns.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trip_id"}},
		UpdateAll: true,
	}).Create(&trips).Error
}

// ListByDevice returns a device's trips ordered by start time
func ListByDevice(ctx context.Context, conns *db.Connections, deviceID string) ([]db.Trip, error) {
	var trips []db.Trip
	err := conns.DB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("start_time ASC").
		Order("trip_id ASC").
		Find(&trips).Error
	return trips, err
}

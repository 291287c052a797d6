package alarmstore

import (
	"context"

	"github.com/edgetensor/fleetdash/internal/db"
	"gorm.io/gorm/clause"
)

// Upsert inserts or replaces alarms keyed by alarm id
func Upsert(ctx context.Context, conns *db.Connections, alarms []db.Alarm) error {
	if len(alarms) == 0 {
		return nil
	}
	return conns.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alarm_id"}},
		UpdateAll: true,
	}).Create(&alarms).Error
}

// ListByDevice returns a device's alarms ordered by timestamp
func ListByDevice(ctx context.Context, conns *db.Connections, deviceID string) ([]db.Alarm, error) {
	var alarms []db.Alarm
	err := conns.DB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp ASC").
		Order("alarm_id ASC").
		Find(&alarms).Error
	return alarms, err
}

package alarmstore

import (
	"context"
	"testing"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndList(t *testing.T) {
	conns := db.SetupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)
	clip := "dashcam/dev-1/clip.mp4"

	require.NoError(t, Upsert(ctx, conns, []db.Alarm{
		{AlarmID: "a2", DeviceID: "dev-1", Timestamp: &later, AlarmType: "harsh_brake"},
		{AlarmID: "a1", DeviceID: "dev-1", Timestamp: &base, AlarmType: "overspeed", MediaURL: &clip},
	}))
	require.NoError(t, Upsert(ctx, conns, []db.Alarm{
		{AlarmID: "a2", DeviceID: "dev-1", Timestamp: &later, AlarmType: "collision"},
	}))

	alarms, err := ListByDevice(ctx, conns, "dev-1")
	require.NoError(t, err)
	require.Len(t, alarms, 2)
	assert.Equal(t, "a1", alarms[0].AlarmID)
	require.NotNil(t, alarms[0].MediaURL)
	assert.Equal(t, clip, *alarms[0].MediaURL)
	assert.Equal(t, "collision", alarms[1].AlarmType)

	none, err := ListByDevice(ctx, conns, "dev-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

package dashboard

import (
	"context"
	"testing"

	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTab(t *testing.T) {
	assert.Equal(t, TabAlarms, ParseTab("alarms"))
	assert.Equal(t, TabTrips, ParseTab("trips"))
	assert.Equal(t, TabTrips, ParseTab(""))
	assert.Equal(t, TabTrips, ParseTab("bogus"))
}

func TestDeviceDetail_OpenFetchesStatusAndActiveTabOnly(t *testing.T) {
	api := newFakeAPI()
	api.trips = func(_ context.Context, id string) ([]types.Trip, error) {
		return []types.Trip{{TripID: "t1", DeviceID: id}}, nil
	}
	toasts := &ToastRecorder{}
	d := NewDeviceDetail(api, toasts)

	d.Open(context.Background(), "d1", TabTrips)

	assert.Equal(t, 1, api.Calls("location"))
	assert.Equal(t, 1, api.Calls("trips"))
	assert.Equal(t, 0, api.Calls("alarms"))

	state := d.State()
	assert.Equal(t, "d1", state.DeviceID)
	assert.Equal(t, TabTrips, state.Tab)
	require.NotNil(t, state.Status.Location)
	require.Len(t, state.Trips.Trips, 1)
	assert.Equal(t, "t1", state.Trips.Trips[0].TripID)

	var messages []string
	for _, toast := range toasts.Toasts() {
		messages = append(messages, toast.Message)
	}
	assert.ElementsMatch(t, []string{"Device status loaded", "Trips loaded"}, messages)
}

func TestDeviceDetail_TabSwitchAlwaysRefetches(t *testing.T) {
	api := newFakeAPI()
	d := NewDeviceDetail(api, nil)
	ctx := context.Background()

	d.Open(ctx, "d1", TabTrips)
	d.SetTab(ctx, TabAlarms)
	d.SetTab(ctx, TabTrips)

	assert.Equal(t, 2, api.Calls("trips"))
	assert.Equal(t, 1, api.Calls("alarms"))
	assert.Equal(t, 1, api.Calls("location"))
	assert.Equal(t, TabTrips, d.State().Tab)
}

func TestDeviceDetail_StatusOnlyRefetchedOnDeviceChange(t *testing.T) {
	api := newFakeAPI()
	d := NewDeviceDetail(api, nil)
	ctx := context.Background()

	d.Open(ctx, "d1", TabTrips)
	d.Open(ctx, "d1", TabAlarms)
	assert.Equal(t, 1, api.Calls("location"))

	d.Open(ctx, "d2", TabAlarms)
	assert.Equal(t, 2, api.Calls("location"))
}

func TestDeviceDetail_Errors(t *testing.T) {
	api := newFakeAPI()
	api.location = func(context.Context, string) (*types.Location, error) { return nil, errBoom }
	api.trips = func(context.Context, string) ([]types.Trip, error) { return nil, errBoom }
	api.alarms = func(context.Context, string) ([]types.Alarm, error) { return nil, errBoom }
	d := NewDeviceDetail(api, nil)
	ctx := context.Background()

	d.Open(ctx, "d1", TabTrips)
	state := d.State()
	assert.Equal(t, "Could not load current status.", state.Status.Error)
	assert.Equal(t, "Could not load trips.", state.Trips.Error)

	d.SetTab(ctx, TabAlarms)
	assert.Equal(t, "Could not load alarms.", d.State().Alarms.Error)
}

func TestDeviceDetail_AlarmsTabUsesAlarmList(t *testing.T) {
	api := newFakeAPI()
	api.alarms = func(_ context.Context, id string) ([]types.Alarm, error) {
		return []types.Alarm{
			{AlarmID: "a1", DeviceID: id, MediaURL: strPtr("clips/a1.jpeg")},
			{AlarmID: "a2", DeviceID: id},
		}, nil
	}
	d := NewDeviceDetail(api, nil)
	ctx := context.Background()

	d.Open(ctx, "d1", TabAlarms)
	require.True(t, d.OpenMedia(ctx, "a1"))
	assert.False(t, d.OpenMedia(ctx, "a2"))

	list := d.State().Alarms.List
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "View", list.Rows[0].MediaLabel)
	assert.Equal(t, "-", list.Rows[1].MediaLabel)
	require.NotNil(t, list.Media)
	assert.Equal(t, types.MediaImage, list.Media.Kind)
}

func TestDeviceDetail_DeviceChangeDropsPreviousAlarms(t *testing.T) {
	api := newFakeAPI()
	api.alarms = func(_ context.Context, id string) ([]types.Alarm, error) {
		if id == "d2" {
			return nil, errBoom
		}
		return []types.Alarm{{AlarmID: "a1", DeviceID: id, MediaURL: strPtr("clips/a1.mp4")}}, nil
	}
	d := NewDeviceDetail(api, nil)
	ctx := context.Background()

	d.Open(ctx, "d1", TabAlarms)
	require.True(t, d.OpenMedia(ctx, "a1"))
	require.NotNil(t, d.State().Alarms.List.Media)

	d.Open(ctx, "d2", TabAlarms)

	state := d.State()
	assert.Equal(t, "d2", state.DeviceID)
	assert.Equal(t, "Could not load alarms.", state.Alarms.Error)
	assert.Empty(t, state.Alarms.List.Rows)
	assert.Nil(t, state.Alarms.List.Media)
}

func TestDeviceDetail_SameDeviceKeepsOpenMedia(t *testing.T) {
	api := newFakeAPI()
	api.alarms = func(_ context.Context, id string) ([]types.Alarm, error) {
		return []types.Alarm{{AlarmID: "a1", DeviceID: id, MediaURL: strPtr("clips/a1.mp4")}}, nil
	}
	d := NewDeviceDetail(api, nil)
	ctx := context.Background()

	d.Open(ctx, "d1", TabAlarms)
	require.True(t, d.OpenMedia(ctx, "a1"))

	d.Open(ctx, "d1", TabAlarms)

	media := d.State().Alarms.List.Media
	require.NotNil(t, media)
	assert.Equal(t, types.MediaVideo, media.Kind)
}

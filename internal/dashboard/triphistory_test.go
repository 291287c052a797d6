package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rangeStart = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
)

func historyOf(points ...types.TrackPoint) func(context.Context, string, time.Time, time.Time) ([]types.TrackPoint, error) {
	return func(context.Context, string, time.Time, time.Time) ([]types.TrackPoint, error) {
		return points, nil
	}
}

func TestTripHistory_MultiplePointsDrawPath(t *testing.T) {
	api := newFakeAPI()
	api.history = historyOf(
		types.TrackPoint{Lat: 1, Lng: 1},
		types.TrackPoint{Lat: 2, Lng: 2},
		types.TrackPoint{Lat: 3, Lng: 3},
	)
	toasts := &ToastRecorder{}
	h := NewTripHistory(api, toasts)

	require.NoError(t, h.Submit(context.Background(), "d1", rangeStart, rangeEnd))

	state := h.State()
	assert.Len(t, state.Path, 3)
	assert.Equal(t, []LatLng{{Lat: 1, Lng: 1}, {Lat: 3, Lng: 3}}, state.Markers)
	assert.Equal(t, LatLng{Lat: 1, Lng: 1}, state.Center)
	assert.Equal(t, TripHistoryZoom, state.Zoom)
	assert.Equal(t, "Trip history loaded", toasts.Toasts()[0].Message)
}

func TestTripHistory_SinglePointIsMarkerOnly(t *testing.T) {
	api := newFakeAPI()
	api.history = historyOf(types.TrackPoint{Lat: 5, Lng: 6})
	h := NewTripHistory(api, nil)

	require.NoError(t, h.Submit(context.Background(), "d1", rangeStart, rangeEnd))

	state := h.State()
	assert.Empty(t, state.Path)
	assert.Equal(t, []LatLng{{Lat: 5, Lng: 6}}, state.Markers)
	assert.Equal(t, LatLng{Lat: 5, Lng: 6}, state.Center)
}

func TestTripHistory_NoPointsIsEmptyMapAtFallback(t *testing.T) {
	h := NewTripHistory(newFakeAPI(), nil)

	require.NoError(t, h.Submit(context.Background(), "d1", rangeStart, rangeEnd))

	state := h.State()
	assert.True(t, state.Submitted)
	assert.Empty(t, state.Path)
	assert.Empty(t, state.Markers)
	assert.Equal(t, LatLng{Lat: 37.7749, Lng: -122.4194}, state.Center)
}

func TestTripHistory_RequiresBothBounds(t *testing.T) {
	api := newFakeAPI()
	h := NewTripHistory(api, nil)

	assert.ErrorIs(t, h.Submit(context.Background(), "d1", time.Time{}, rangeEnd), ErrMissingRange)
	assert.ErrorIs(t, h.Submit(context.Background(), "d1", rangeStart, time.Time{}), ErrMissingRange)
	assert.Equal(t, 0, api.Calls("history"))
	assert.False(t, h.State().Submitted)
}

func TestTripHistory_FailureClearsPreviousResult(t *testing.T) {
	api := newFakeAPI()
	fail := false
	api.history = func(context.Context, string, time.Time, time.Time) ([]types.TrackPoint, error) {
		if fail {
			return nil, errBoom
		}
		return []types.TrackPoint{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, nil
	}
	toasts := &ToastRecorder{}
	h := NewTripHistory(api, toasts)

	require.NoError(t, h.Submit(context.Background(), "d1", rangeStart, rangeEnd))
	fail = true
	assert.ErrorIs(t, h.Submit(context.Background(), "d1", rangeStart, rangeEnd), errBoom)

	state := h.State()
	assert.Equal(t, "Could not load trip history.", state.Error)
	assert.Empty(t, state.Points)
	assert.Empty(t, state.Path)
	assert.Equal(t, ToastError, toasts.Toasts()[1].Kind)
}

func TestTripHistory_PassesRange(t *testing.T) {
	api := newFakeAPI()
	var gotID string
	var gotStart, gotEnd time.Time
	api.history = func(_ context.Context, id string, start, end time.Time) ([]types.TrackPoint, error) {
		gotID, gotStart, gotEnd = id, start, end
		return nil, nil
	}
	h := NewTripHistory(api, nil)

	require.NoError(t, h.Submit(context.Background(), "veh-9", rangeStart, rangeEnd))

	assert.Equal(t, "veh-9", gotID)
	assert.Equal(t, rangeStart, gotStart)
	assert.Equal(t, rangeEnd, gotEnd)
}

func TestTripHistory_LateOlderSubmitIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := newFakeAPI()
	api.history = func(_ context.Context, id string, _, _ time.Time) ([]types.TrackPoint, error) {
		if id == "slow" {
			close(started)
			<-release
			return []types.TrackPoint{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, nil
		}
		return []types.TrackPoint{{Lat: 7, Lng: 8}}, nil
	}
	toasts := &ToastRecorder{}
	h := NewTripHistory(api, toasts)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- h.Submit(ctx, "slow", rangeStart, rangeEnd) }()
	<-started

	require.NoError(t, h.Submit(ctx, "fast", rangeStart, rangeEnd))
	close(release)
	require.NoError(t, <-done)

	state := h.State()
	assert.Equal(t, "fast", state.DeviceID)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Path)
	assert.Equal(t, []LatLng{{Lat: 7, Lng: 8}}, state.Markers)

	require.Len(t, toasts.Toasts(), 1)
	assert.Equal(t, "Trip history loaded", toasts.Toasts()[0].Message)
}

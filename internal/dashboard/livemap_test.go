package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLiveMap(api *fakeAPI) (*LiveMap, *ToastRecorder) {
	toasts := &ToastRecorder{}
	return NewLiveMap(NewStore(api), api, toasts, time.Hour), toasts
}

func TestLiveMap_MarkersAndCenter(t *testing.T) {
	api := newFakeAPI()
	api.listDevices = func(context.Context) ([]types.Device, error) {
		return []types.Device{
			{DeviceID: "no-fix"},
			{DeviceID: "half", Lat: floatPtr(1)},
			positioned("d1", 40.1, -105.2),
			positioned("d2", 41, -104),
		}, nil
	}
	m, toasts := newTestLiveMap(api)

	require.NoError(t, m.Refresh(context.Background()))

	state := m.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Equal(t, LiveMapZoom, state.Zoom)
	assert.Equal(t, LatLng{Lat: 40.1, Lng: -105.2}, state.Center)
	require.Len(t, state.Markers, 2)
	assert.Equal(t, "d1", state.Markers[0].DeviceID)
	assert.Equal(t, "d2", state.Markers[1].DeviceID)

	require.Len(t, toasts.Toasts(), 1)
	assert.Equal(t, Toast{Kind: ToastSuccess, Message: "Devices loaded", At: toasts.Toasts()[0].At}, toasts.Toasts()[0])
}

func TestLiveMap_FallbackCenterWithoutPositions(t *testing.T) {
	api := newFakeAPI()
	api.listDevices = func(context.Context) ([]types.Device, error) {
		return []types.Device{{DeviceID: "d1"}}, nil
	}
	m, _ := newTestLiveMap(api)

	require.NoError(t, m.Refresh(context.Background()))

	state := m.State()
	assert.Equal(t, FallbackCenter, state.Center)
	assert.Empty(t, state.Markers)
}

func TestLiveMap_FailuresThenSuccess(t *testing.T) {
	api := newFakeAPI()
	n := 0
	api.listDevices = func(context.Context) ([]types.Device, error) {
		n++
		if n <= 2 {
			return nil, errBoom
		}
		return []types.Device{positioned("d1", 10, 20)}, nil
	}
	m, toasts := newTestLiveMap(api)
	ctx := context.Background()

	assert.Error(t, m.Refresh(ctx))
	state := m.State()
	assert.Equal(t, "Failed to load devices. Please try again.", state.Error)
	assert.Empty(t, state.Markers)

	assert.Error(t, m.Refresh(ctx))
	require.NoError(t, m.Refresh(ctx))

	state = m.State()
	assert.Empty(t, state.Error)
	assert.False(t, state.Loading)
	require.Len(t, state.Markers, 1)
	assert.Equal(t, "d1", state.Markers[0].DeviceID)

	got := toasts.Toasts()
	require.Len(t, got, 3)
	assert.Equal(t, "Failed to load devices.", got[0].Message)
	assert.Equal(t, ToastError, got[1].Kind)
	assert.Equal(t, ToastSuccess, got[2].Kind)
}

func TestLiveMap_FailureHidesPreviouslyLoadedMarkers(t *testing.T) {
	api := newFakeAPI()
	fail := false
	api.listDevices = func(context.Context) ([]types.Device, error) {
		if fail {
			return nil, errBoom
		}
		return []types.Device{positioned("d1", 10, 20)}, nil
	}
	m, _ := newTestLiveMap(api)

	require.NoError(t, m.Refresh(context.Background()))
	fail = true
	assert.Error(t, m.Refresh(context.Background()))

	state := m.State()
	assert.NotEmpty(t, state.Error)
	assert.Empty(t, state.Markers)
}

func TestLiveMap_SelectLoadsPopup(t *testing.T) {
	api := newFakeAPI()
	api.listDevices = func(context.Context) ([]types.Device, error) {
		return []types.Device{positioned("d1", 10, 20)}, nil
	}
	api.location = func(_ context.Context, id string) (*types.Location, error) {
		return &types.Location{DeviceID: id, Lat: 10, Lng: 20, Speed: floatPtr(3)}, nil
	}
	m, toasts := newTestLiveMap(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	m.Select(ctx, "d1")

	state := m.State()
	assert.Equal(t, "d1", state.Selected)
	require.NotNil(t, state.Popup)
	assert.False(t, state.Popup.Loading)
	require.NotNil(t, state.Popup.Location)
	assert.Equal(t, 3.0, *state.Popup.Location.Speed)
	assert.True(t, state.Markers[0].Selected)
	assert.Equal(t, "Location loaded", toasts.Toasts()[1].Message)
}

func TestLiveMap_SelectFailure(t *testing.T) {
	api := newFakeAPI()
	api.location = func(context.Context, string) (*types.Location, error) { return nil, errBoom }
	m, toasts := newTestLiveMap(api)

	m.Select(context.Background(), "ghost")

	state := m.State()
	assert.Equal(t, "ghost", state.Selected)
	require.NotNil(t, state.Popup)
	assert.Equal(t, "Could not load location.", state.Popup.Error)
	assert.Nil(t, state.Popup.Location)
	require.Len(t, toasts.Toasts(), 1)
	assert.Equal(t, ToastError, toasts.Toasts()[0].Kind)
}

func TestLiveMap_NewerSelectionWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := newFakeAPI()
	api.location = func(_ context.Context, id string) (*types.Location, error) {
		if id == "slow" {
			close(started)
			<-release
		}
		return &types.Location{DeviceID: id}, nil
	}
	m, _ := newTestLiveMap(api)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Select(ctx, "slow")
	}()
	<-started

	m.Select(ctx, "fast")
	close(release)
	wg.Wait()

	state := m.State()
	assert.Equal(t, "fast", state.Selected)
	require.NotNil(t, state.Popup)
	assert.Equal(t, "fast", state.Popup.Location.DeviceID)
}

func TestLiveMap_ClosePopup(t *testing.T) {
	m, _ := newTestLiveMap(newFakeAPI())
	m.Select(context.Background(), "d1")

	m.ClosePopup()

	state := m.State()
	assert.Empty(t, state.Selected)
	assert.Nil(t, state.Popup)
}

func TestLiveMap_OnChange(t *testing.T) {
	m, _ := newTestLiveMap(newFakeAPI())

	var mu sync.Mutex
	var states []MapState
	unsubscribe := m.OnChange(func(s MapState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	require.NoError(t, m.Refresh(context.Background()))

	mu.Lock()
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.False(t, states[1].Loading)
	mu.Unlock()

	unsubscribe()
	require.NoError(t, m.Refresh(context.Background()))

	mu.Lock()
	assert.Len(t, states, 2)
	mu.Unlock()
}

func TestLiveMap_RunPollsUntilCancelled(t *testing.T) {
	api := newFakeAPI()
	m := NewLiveMap(NewStore(api), api, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return api.Calls("devices") >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestLiveMap_LateOlderRefreshIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := newFakeAPI()
	first := true
	api.listDevices = func(context.Context) ([]types.Device, error) {
		if first {
			first = false
			close(started)
			<-release
			return nil, errBoom
		}
		return []types.Device{positioned("new", 10, 20)}, nil
	}
	m, toasts := newTestLiveMap(api)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- m.Refresh(ctx) }()
	<-started

	require.NoError(t, m.Refresh(ctx))
	close(release)
	assert.ErrorIs(t, <-done, errBoom)

	state := m.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	require.Len(t, state.Markers, 1)
	assert.Equal(t, "new", state.Markers[0].DeviceID)

	require.Len(t, toasts.Toasts(), 1)
	assert.Equal(t, ToastSuccess, toasts.Toasts()[0].Kind)
}

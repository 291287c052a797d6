package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
)

const (
	DefaultPollInterval = 30 * time.Second
	LiveMapZoom         = 6

	msgDevicesLoaded     = "Devices loaded"
	msgDevicesFailed     = "Failed to load devices."
	msgDevicesFailedFull = "Failed to load devices. Please try again."
	msgLocationLoaded    = "Location loaded"
	msgLocationFailed    = "Could not load location."
)

// Marker is a device pin on the live map.
type Marker struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label"`
	Position LatLng `json:"position"`
	Selected bool   `json:"selected"`
}

// Popup is the info window of the selected device.
type Popup struct {
	DeviceID string          `json:"device_id"`
	Loading  bool            `json:"loading"`
	Error    string          `json:"error,omitempty"`
	Location *types.Location `json:"location,omitempty"`
}

// MapState is everything needed to render the live map.
type MapState struct {
	Loading  bool     `json:"loading"`
	Error    string   `json:"error,omitempty"`
	Center   LatLng   `json:"center"`
	Zoom     int      `json:"zoom"`
	Markers  []Marker `json:"markers"`
	Selected string   `json:"selected,omitempty"`
	Popup    *Popup   `json:"popup,omitempty"`
}

// LiveMap polls the device list and tracks the selected device's popup.
type LiveMap struct {
	store    *Store
	api      API
	notifier Notifier
	interval time.Duration

	mu           sync.Mutex
	loading      bool
	err          string
	refreshToken uint64
	selectToken  uint64
	popup        *Popup
	subs         map[int]func(MapState)
	nextSub      int
}

func NewLiveMap(store *Store, api API, notifier Notifier, interval time.Duration) *LiveMap {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &LiveMap{
		store:    store,
		api:      api,
		notifier: notifier,
		interval: interval,
		subs:     make(map[int]func(MapState)),
	}
}

// Run refreshes immediately and then once per poll interval until ctx is
// cancelled.
func (m *LiveMap) Run(ctx context.Context) {
	slog.Info("dashboard.live_map.started",
		"component", "dashboard",
		"event", "live_map.started",
		"poll_interval", m.interval)

	m.Refresh(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dashboard.live_map.stopped",
				"component", "dashboard",
				"event", "live_map.stopped")
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// Refresh fetches the device list once. It returns the fetch error, if any.
func (m *LiveMap) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.refreshToken++
	token := m.refreshToken
	m.loading = true
	m.mu.Unlock()
	m.publish()

	err := m.store.FetchDevices(ctx)
	recordFetch(viewLiveMap, err)

	m.mu.Lock()
	if token != m.refreshToken {
		m.mu.Unlock()
		recordStale(viewLiveMap)
		return err
	}
	m.loading = false
	if err != nil {
		m.err = msgDevicesFailedFull
	} else {
		m.err = ""
	}
	m.mu.Unlock()

	if err != nil {
		slog.Warn("dashboard.live_map.refresh_failed",
			"component", "dashboard",
			"event", "live_map.refresh_failed",
			"error", err)
		m.notifier.Error(msgDevicesFailed)
	} else {
		m.notifier.Success(msgDevicesLoaded)
	}
	m.publish()
	return err
}

// Select makes deviceID the selected device and loads its latest location
// for the popup. A newer Select or ClosePopup supersedes an in-flight one.
func (m *LiveMap) Select(ctx context.Context, deviceID string) {
	m.store.SetSelectedDevice(deviceID)

	m.mu.Lock()
	m.selectToken++
	token := m.selectToken
	m.popup = &Popup{DeviceID: deviceID, Loading: true}
	m.mu.Unlock()
	m.publish()

	loc, err := m.api.DeviceLocation(ctx, deviceID)
	recordFetch(viewPopup, err)

	m.mu.Lock()
	if token != m.selectToken {
		m.mu.Unlock()
		recordStale(viewPopup)
		return
	}
	popup := &Popup{DeviceID: deviceID}
	if err != nil {
		popup.Error = msgLocationFailed
	} else {
		popup.Location = loc
	}
	m.popup = popup
	m.mu.Unlock()

	if err != nil {
		m.notifier.Error(msgLocationFailed)
	} else {
		m.notifier.Success(msgLocationLoaded)
	}
	m.publish()
}

// ClosePopup clears the selection and drops any pending location load.
func (m *LiveMap) ClosePopup() {
	m.store.ClearSelection()

	m.mu.Lock()
	m.selectToken++
	m.popup = nil
	m.mu.Unlock()
	m.publish()
}

// OnChange registers fn to receive every new state. The returned function
// unregisters it.
func (m *LiveMap) OnChange(fn func(MapState)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// State builds the current map state.
func (m *LiveMap) State() MapState {
	m.mu.Lock()
	loading := m.loading
	errMsg := m.err
	var popup *Popup
	if m.popup != nil {
		p := *m.popup
		popup = &p
	}
	m.mu.Unlock()

	state := MapState{
		Loading: loading,
		Error:   errMsg,
		Center:  FallbackCenter,
		Zoom:    LiveMapZoom,
		Markers: []Marker{},
	}
	if errMsg != "" {
		return state
	}

	selected, hasSelected := m.store.Selected()
	if hasSelected {
		state.Selected = selected
		state.Popup = popup
	}

	centered := false
	for _, d := range m.store.Devices() {
		if !d.HasPosition() {
			continue
		}
		pos := LatLng{Lat: *d.Lat, Lng: *d.Lng}
		if !centered {
			state.Center = pos
			centered = true
		}
		state.Markers = append(state.Markers, Marker{
			DeviceID: d.DeviceID,
			Label:    d.DisplayName(),
			Position: pos,
			Selected: hasSelected && d.DeviceID == selected,
		})
	}
	return state
}

func (m *LiveMap) publish() {
	m.mu.Lock()
	subs := make([]func(MapState), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	state := m.State()
	for _, fn := range subs {
		fn(state)
	}
}

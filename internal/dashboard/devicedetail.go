package dashboard

import (
	"context"
	"sync"

	"github.com/edgetensor/fleetdash/internal/types"
)

// Tab is a section of the device detail page.
type Tab string

const (
	TabTrips  Tab = "trips"
	TabAlarms Tab = "alarms"
)

// ParseTab maps a query value to a tab, defaulting to trips.
func ParseTab(s string) Tab {
	if Tab(s) == TabAlarms {
		return TabAlarms
	}
	return TabTrips
}

const (
	msgStatusLoaded = "Device status loaded"
	msgStatusFailed = "Could not load current status."
	msgTripsLoaded  = "Trips loaded"
	msgTripsFailed  = "Could not load trips."
	msgAlarmsLoaded = "Alarms loaded"
	msgAlarmsFailed = "Could not load alarms."
)

type StatusSection struct {
	Loading  bool            `json:"loading"`
	Error    string          `json:"error,omitempty"`
	Location *types.Location `json:"location,omitempty"`
}

type TripsSection struct {
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
	Trips   []types.Trip `json:"trips"`
}

type AlarmsSection struct {
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
	List    AlarmListState `json:"list"`
}

type DeviceDetailState struct {
	DeviceID string        `json:"device_id"`
	Tab      Tab           `json:"tab"`
	Status   StatusSection `json:"status"`
	Trips    TripsSection  `json:"trips"`
	Alarms   AlarmsSection `json:"alarms"`
}

// DeviceDetail shows the current status of one device plus either its trips
// or its alarms. Only the active tab is fetched, and every tab switch
// refetches.
type DeviceDetail struct {
	api      API
	notifier Notifier
	alarms   *AlarmList

	mu          sync.Mutex
	deviceID    string
	tab         Tab
	statusToken uint64
	tabToken    uint64
	status      StatusSection
	trips       TripsSection
	alarmsState AlarmsSection
}

func NewDeviceDetail(api API, notifier Notifier) *DeviceDetail {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &DeviceDetail{
		api:      api,
		notifier: notifier,
		alarms:   NewAlarmList(api, notifier, nil),
		tab:      TabTrips,
	}
}

// Open shows deviceID on tab. The current status is only fetched when the
// device changes; the tab is always fetched. Switching device drops the
// previous device's alarms and open media.
func (d *DeviceDetail) Open(ctx context.Context, deviceID string, tab Tab) {
	d.mu.Lock()
	changed := deviceID != d.deviceID
	d.deviceID = deviceID
	d.tab = tab
	if changed {
		d.trips = TripsSection{}
		d.alarmsState = AlarmsSection{}
	}
	d.mu.Unlock()

	if changed {
		d.alarms.Reset()
	}

	var wg sync.WaitGroup
	if changed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.fetchStatus(ctx, deviceID)
		}()
	}
	d.fetchTab(ctx, deviceID, tab)
	wg.Wait()
}

// SetTab switches the active tab and refetches it.
func (d *DeviceDetail) SetTab(ctx context.Context, tab Tab) {
	d.mu.Lock()
	d.tab = tab
	deviceID := d.deviceID
	d.mu.Unlock()

	d.fetchTab(ctx, deviceID, tab)
}

// OpenMedia resolves the media of an alarm on the alarms tab.
func (d *DeviceDetail) OpenMedia(ctx context.Context, alarmID string) bool {
	return d.alarms.Open(ctx, alarmID)
}

func (d *DeviceDetail) State() DeviceDetailState {
	d.mu.Lock()
	state := DeviceDetailState{
		DeviceID: d.deviceID,
		Tab:      d.tab,
		Status:   d.status,
		Trips:    d.trips,
		Alarms:   d.alarmsState,
	}
	d.mu.Unlock()

	state.Trips.Trips = append([]types.Trip{}, state.Trips.Trips...)
	state.Alarms.List = d.alarms.State()
	return state
}

func (d *DeviceDetail) fetchStatus(ctx context.Context, deviceID string) {
	d.mu.Lock()
	d.statusToken++
	token := d.statusToken
	d.status = StatusSection{Loading: true}
	d.mu.Unlock()

	loc, err := d.api.DeviceLocation(ctx, deviceID)
	recordFetch(viewDeviceState, err)

	d.mu.Lock()
	if token != d.statusToken {
		d.mu.Unlock()
		recordStale(viewDeviceState)
		return
	}
	if err != nil {
		d.status = StatusSection{Error: msgStatusFailed}
	} else {
		d.status = StatusSection{Location: loc}
	}
	d.mu.Unlock()

	if err != nil {
		d.notifier.Error(msgStatusFailed)
	} else {
		d.notifier.Success(msgStatusLoaded)
	}
}

func (d *DeviceDetail) fetchTab(ctx context.Context, deviceID string, tab Tab) {
	d.mu.Lock()
	d.tabToken++
	token := d.tabToken
	if tab == TabAlarms {
		d.alarmsState = AlarmsSection{Loading: true}
	} else {
		d.trips = TripsSection{Loading: true}
	}
	d.mu.Unlock()

	if tab == TabAlarms {
		alarms, err := d.api.DeviceAlarms(ctx, deviceID)
		recordFetch(viewAlarms, err)
		if !d.applyTab(token, viewAlarms, func() {
			if err != nil {
				d.alarmsState = AlarmsSection{Error: msgAlarmsFailed}
				return
			}
			d.alarmsState = AlarmsSection{}
			d.alarms.SetAlarms(alarms)
		}) {
			return
		}
		d.toast(err, msgAlarmsLoaded, msgAlarmsFailed)
		return
	}

	trips, err := d.api.DeviceTrips(ctx, deviceID)
	recordFetch(viewTrips, err)
	if !d.applyTab(token, viewTrips, func() {
		if err != nil {
			d.trips = TripsSection{Error: msgTripsFailed}
			return
		}
		d.trips = TripsSection{Trips: trips}
	}) {
		return
	}
	d.toast(err, msgTripsLoaded, msgTripsFailed)
}

// applyTab runs apply under the lock unless a newer tab fetch was issued.
func (d *DeviceDetail) applyTab(token uint64, view string, apply func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if token != d.tabToken {
		recordStale(view)
		return false
	}
	apply()
	return true
}

func (d *DeviceDetail) toast(err error, success, failure string) {
	if err != nil {
		d.notifier.Error(failure)
		return
	}
	d.notifier.Success(success)
}

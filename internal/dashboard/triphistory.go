package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
)

const (
	TripHistoryZoom = 10

	// HistoryInputLayout is the layout of the range form fields.
	HistoryInputLayout = "2006-01-02T15:04"

	msgHistoryLoaded = "Trip history loaded"
	msgHistoryFailed = "Could not load trip history."
)

var ErrMissingRange = errors.New("start and end time are both required")

// TripHistoryState is the rendered trip history for one submitted range.
type TripHistoryState struct {
	DeviceID  string             `json:"device_id"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	Submitted bool               `json:"submitted"`
	Loading   bool               `json:"loading"`
	Error     string             `json:"error,omitempty"`
	Points    []types.TrackPoint `json:"points"`
	Path      []LatLng           `json:"path,omitempty"`
	Markers   []LatLng           `json:"markers"`
	Center    LatLng             `json:"center"`
	Zoom      int                `json:"zoom"`
}

// TripHistory loads the recorded path of a device over a time range.
type TripHistory struct {
	api      API
	notifier Notifier

	mu        sync.Mutex
	token     uint64
	deviceID  string
	start     time.Time
	end       time.Time
	submitted bool
	loading   bool
	err       string
	points    []types.TrackPoint
}

func NewTripHistory(api API, notifier Notifier) *TripHistory {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TripHistory{api: api, notifier: notifier}
}

// Submit replaces the current result with the path of deviceID between start
// and end. The previous result is cleared before the fetch is issued.
func (h *TripHistory) Submit(ctx context.Context, deviceID string, start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrMissingRange
	}

	h.mu.Lock()
	h.token++
	token := h.token
	h.deviceID = deviceID
	h.start = start
	h.end = end
	h.submitted = true
	h.loading = true
	h.err = ""
	h.points = nil
	h.mu.Unlock()

	points, err := h.api.DeviceHistory(ctx, deviceID, start, end)
	recordFetch(viewTripHistory, err)

	h.mu.Lock()
	if token != h.token {
		h.mu.Unlock()
		recordStale(viewTripHistory)
		return err
	}
	h.loading = false
	if err != nil {
		h.err = msgHistoryFailed
	} else {
		h.points = points
	}
	h.mu.Unlock()

	if err != nil {
		h.notifier.Error(msgHistoryFailed)
		return err
	}
	h.notifier.Success(msgHistoryLoaded)
	return nil
}

func (h *TripHistory) State() TripHistoryState {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := TripHistoryState{
		DeviceID:  h.deviceID,
		Start:     h.start,
		End:       h.end,
		Submitted: h.submitted,
		Loading:   h.loading,
		Error:     h.err,
		Points:    append([]types.TrackPoint(nil), h.points...),
		Markers:   []LatLng{},
		Center:    FallbackCenter,
		Zoom:      TripHistoryZoom,
	}

	n := len(h.points)
	if n == 0 {
		return state
	}

	first := LatLng{Lat: h.points[0].Lat, Lng: h.points[0].Lng}
	state.Center = first
	state.Markers = append(state.Markers, first)
	if n == 1 {
		return state
	}

	last := h.points[n-1]
	state.Markers = append(state.Markers, LatLng{Lat: last.Lat, Lng: last.Lng})
	state.Path = make([]LatLng, n)
	for i, p := range h.points {
		state.Path[i] = LatLng{Lat: p.Lat, Lng: p.Lng}
	}
	return state
}

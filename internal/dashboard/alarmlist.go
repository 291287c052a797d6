package dashboard

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/edgetensor/fleetdash/internal/types"
)

const (
	mediaLabelView = "View"
	mediaLabelNone = "-"

	msgMediaLoaded = "Media loaded"
	msgMediaFailed = "Could not load media."
)

// AlarmRow is one rendered line of the alarm table.
type AlarmRow struct {
	AlarmID    string `json:"alarm_id"`
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"`
	Location   string `json:"location"`
	MediaLabel string `json:"media_label"`
	HasMedia   bool   `json:"has_media"`
}

// MediaView is the resolved media of the opened alarm.
type MediaView struct {
	AlarmID string          `json:"alarm_id"`
	URL     string          `json:"url"`
	Kind    types.MediaKind `json:"kind"`
}

type AlarmListState struct {
	Rows    []AlarmRow `json:"rows"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
	Media   *MediaView `json:"media,omitempty"`
}

// AlarmList renders alarms and resolves their media to signed URLs on demand.
type AlarmList struct {
	api      API
	notifier Notifier

	mu      sync.Mutex
	alarms  []types.Alarm
	loading bool
	err     string
	media   *MediaView
}

func NewAlarmList(api API, notifier Notifier, alarms []types.Alarm) *AlarmList {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AlarmList{api: api, notifier: notifier, alarms: alarms}
}

// SetAlarms replaces the listed alarms. An open media view stays open.
func (l *AlarmList) SetAlarms(alarms []types.Alarm) {
	l.mu.Lock()
	l.alarms = alarms
	l.mu.Unlock()
}

// Open resolves the media of alarmID. It reports false without doing anything
// when the alarm is unknown, has no media, or another resolution is running.
func (l *AlarmList) Open(ctx context.Context, alarmID string) bool {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return false
	}
	var mediaPath string
	for _, a := range l.alarms {
		if a.AlarmID == alarmID && a.HasMedia() {
			mediaPath = *a.MediaURL
			break
		}
	}
	if mediaPath == "" {
		l.mu.Unlock()
		return false
	}
	l.loading = true
	l.err = ""
	l.mu.Unlock()

	url, err := l.api.SignedURL(ctx, mediaPath)
	recordFetch(viewAlarmMedia, err)

	l.mu.Lock()
	l.loading = false
	if err != nil {
		l.media = nil
		l.err = msgMediaFailed
	} else {
		// The signed URL carries a query string, so the kind comes from the
		// stored path.
		l.media = &MediaView{AlarmID: alarmID, URL: url, Kind: types.InferMediaKind(mediaPath)}
	}
	l.mu.Unlock()

	if err != nil {
		l.notifier.Error(msgMediaFailed)
	} else {
		l.notifier.Success(msgMediaLoaded)
	}
	return true
}

// Reset drops the listed alarms together with any open media or media error.
func (l *AlarmList) Reset() {
	l.mu.Lock()
	l.alarms = nil
	l.media = nil
	l.err = ""
	l.mu.Unlock()
}

// CloseMedia hides the media view.
func (l *AlarmList) CloseMedia() {
	l.mu.Lock()
	l.media = nil
	l.mu.Unlock()
}

func (l *AlarmList) State() AlarmListState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := AlarmListState{
		Rows:    make([]AlarmRow, 0, len(l.alarms)),
		Loading: l.loading,
		Error:   l.err,
	}
	if l.media != nil {
		m := *l.media
		state.Media = &m
	}
	for _, a := range l.alarms {
		state.Rows = append(state.Rows, alarmRow(a))
	}
	return state
}

func alarmRow(a types.Alarm) AlarmRow {
	row := AlarmRow{
		AlarmID:    a.AlarmID,
		Timestamp:  "-",
		Type:       a.Type,
		Location:   FormatLatLng(a.Lat, a.Lng),
		MediaLabel: mediaLabelNone,
	}
	if a.Timestamp != nil {
		row.Timestamp = a.Timestamp.UTC().Format(time.RFC3339)
	}
	if a.HasMedia() {
		row.MediaLabel = mediaLabelView
		row.HasMedia = true
	}
	return row
}

// FormatLatLng renders "lat, lng", or "-" when either is missing.
func FormatLatLng(lat, lng *float64) string {
	if lat == nil || lng == nil {
		return "-"
	}
	return strconv.FormatFloat(*lat, 'f', -1, 64) + ", " + strconv.FormatFloat(*lng, 'f', -1, 64)
}

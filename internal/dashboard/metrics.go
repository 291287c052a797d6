package dashboard

import "github.com/edgetensor/fleetdash/internal/metrics"

const (
	viewLiveMap     = "live_map"
	viewPopup       = "popup"
	viewTripHistory = "trip_history"
	viewAlarmMedia  = "alarm_media"
	viewDeviceState = "device_status"
	viewTrips       = "trips"
	viewAlarms      = "alarms"
)

func recordFetch(view string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.DashboardFetches.WithLabelValues(view, result).Inc()
}

func recordStale(view string) {
	metrics.DashboardStaleResponses.WithLabelValues(view).Inc()
}

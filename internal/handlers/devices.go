package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/edgetensor/fleetdash/internal/services"
	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
)

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// historyQuery is the query string of the history endpoint and page.
type historyQuery struct {
	StartTime string `schema:"start_time"`
	EndTime   string `schema:"end_time"`
}

// ListDevicesHandler handles GET /api/v2.0/devices/matrack.
func ListDevicesHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := deps.Devices.ListDevices(r.Context())
		if err != nil {
			internalError(w, "list_devices", err)
			return
		}
		writeJSON(w, http.StatusOK, devices)
	}
}

// DeviceLocationHandler handles GET /api/v2.0/devices/matrack/{id}/location.
func DeviceLocationHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := mux.Vars(r)["id"]

		loc, err := deps.Devices.LatestLocation(r.Context(), deviceID)
		if errors.Is(err, services.ErrNoLocation) {
			writeError(w, http.StatusNotFound, "not_found", "No location found for this device")
			return
		}
		if err != nil {
			internalError(w, "device_location", err)
			return
		}
		writeJSON(w, http.StatusOK, loc)
	}
}

// DeviceHistoryHandler handles GET /api/v2.0/devices/matrack/{id}/history.
// Both bounds are required ISO 8601 times; the range is inclusive.
func DeviceHistoryHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := mux.Vars(r)["id"]

		var q historyQuery
		if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if q.StartTime == "" || q.EndTime == "" {
			writeError(w, http.StatusBadRequest, "missing_parameter", "start_time and end_time are required")
			return
		}
		start, errStart := types.ParseISOTime(q.StartTime)
		end, errEnd := types.ParseISOTime(q.EndTime)
		if errStart != nil || errEnd != nil {
			writeError(w, http.StatusBadRequest, "invalid_date",
				"Invalid date format. Use ISO format (YYYY-MM-DDTHH:MM:SS)")
			return
		}

		points, err := deps.Devices.History(r.Context(), deviceID, start, end)
		if err != nil {
			internalError(w, "device_history", err)
			return
		}
		writeJSON(w, http.StatusOK, points)
	}
}

// DeviceTripsHandler handles GET /api/v2.0/devices/matrack/{id}/trips.
func DeviceTripsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trips, err := deps.Devices.Trips(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			internalError(w, "device_trips", err)
			return
		}
		writeJSON(w, http.StatusOK, trips)
	}
}

// DeviceAlarmsHandler handles GET /api/v2.0/devices/matrack/{id}/alarms.
func DeviceAlarmsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alarms, err := deps.Devices.Alarms(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			internalError(w, "device_alarms", err)
			return
		}
		writeJSON(w, http.StatusOK, alarms)
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error("api.query_failed",
		"component", "api",
		"event", "query.error",
		"operation", op,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "failed to load data")
}

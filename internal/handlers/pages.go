package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/edgetensor/fleetdash/internal/dashboard"
	"github.com/edgetensor/fleetdash/internal/templates"
	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/gorilla/mux"
)

// MapWebSocketPath is where the live map page connects for state updates.
const MapWebSocketPath = "/ws/map"

// LiveMapPageHandler handles GET /. The map state is shared by every viewer.
func LiveMapPageHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, "live_map", func() error {
			return templates.RenderLiveMap(w, deps.LiveMap.State(), MapWebSocketPath)
		})
	}
}

// DeviceDetailPageHandler handles GET /devices/{id}?tab=trips|alarms&alarm=.
// Each request gets its own view, so toasts belong to this response only.
func DeviceDetailPageHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		deviceID := mux.Vars(r)["id"]
		query := r.URL.Query()
		tab := dashboard.ParseTab(query.Get("tab"))

		toasts := &dashboard.ToastRecorder{}
		view := dashboard.NewDeviceDetail(deps.DashboardAPI, toasts)
		view.Open(ctx, deviceID, tab)

		if alarmID := query.Get("alarm"); alarmID != "" && tab == dashboard.TabAlarms {
			view.OpenMedia(ctx, alarmID)
		}

		renderPage(w, "device_detail", func() error {
			return templates.RenderDeviceDetail(w, view.State(), toasts.Toasts())
		})
	}
}

// TripHistoryPageHandler handles GET /devices/{id}/history?start_time&end_time.
// Without a range only the form is shown.
func TripHistoryPageHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := mux.Vars(r)["id"]

		var q historyQuery
		_ = queryDecoder.Decode(&q, r.URL.Query())

		toasts := &dashboard.ToastRecorder{}
		view := dashboard.NewTripHistory(deps.DashboardAPI, toasts)
		data := templates.TripHistoryData{
			DeviceID:   deviceID,
			StartInput: q.StartTime,
			EndInput:   q.EndTime,
		}

		if q.StartTime != "" || q.EndTime != "" {
			start, end, message := parseRange(q)
			if message != "" {
				data.FormError = message
			} else {
				data.StartInput = start.Format(dashboard.HistoryInputLayout)
				data.EndInput = end.Format(dashboard.HistoryInputLayout)
				_ = view.Submit(r.Context(), deviceID, start, end)
			}
		}

		data.State = view.State()
		data.Toasts = toasts.Toasts()
		renderPage(w, "trip_history", func() error {
			return templates.RenderTripHistory(w, data)
		})
	}
}

// parseRange validates the history form. A non-empty message is shown to
// the operator instead of fetching.
func parseRange(q historyQuery) (start, end time.Time, message string) {
	if q.StartTime == "" || q.EndTime == "" {
		return start, end, "Both start and end time are required."
	}
	start, err := types.ParseISOTime(q.StartTime)
	if err != nil {
		return start, end, "Start time is not a valid date."
	}
	end, err = types.ParseISOTime(q.EndTime)
	if err != nil {
		return start, end, "End time is not a valid date."
	}
	return start, end, ""
}

func renderPage(w http.ResponseWriter, page string, render func() error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render(); err != nil {
		slog.Error("dashboard.render_failed",
			"component", "dashboard",
			"event", "render.error",
			"page", page,
			"error", err,
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

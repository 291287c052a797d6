package templates

import (
	"embed"
	"html/template"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/edgetensor/fleetdash/internal/dashboard"
)

//go:embed *.html
var templateFS embed.FS

var templates *template.Template

var funcs = template.FuncMap{
	"formatTime": formatTime,
	"timeOrDash": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return formatTime(*t)
	},
	"floatOrDash": func(f *float64) string {
		if f == nil {
			return "-"
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	},
	"ignition": func(status *int) string {
		switch {
		case status == nil:
			return "-"
		case *status == 0:
			return "Off"
		default:
			return "On"
		}
	},
}

func init() {
	var err error
	templates, err = template.New("").Funcs(funcs).ParseFS(templateFS, "*.html")
	if err != nil {
		panic(err)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

// Render executes a template with the given data and writes to w
func Render(w io.Writer, name string, data interface{}) error {
	// Create a clone of the template set to avoid race conditions
	t, err := templates.Clone()
	if err != nil {
		return err
	}

	// Extract template name from filename (e.g., "live-map.html" -> "live-map")
	templateName := name
	if len(templateName) > 5 && templateName[len(templateName)-5:] == ".html" {
		templateName = templateName[:len(templateName)-5]
	}

	// base.html's {{template "content" .}} resolves through this bridge
	bridge := `{{define "content"}}{{template "` + templateName + `" .}}{{end}}`
	t, err = t.New("bridge").Parse(bridge)
	if err != nil {
		return err
	}

	return t.ExecuteTemplate(w, "base.html", data)
}

// PageData is what base.html needs from every page
type PageData struct {
	Title  string
	Toasts []dashboard.Toast
}

type LiveMapData struct {
	PageData
	State         dashboard.MapState
	WebSocketPath string
}

type DeviceDetailData struct {
	PageData
	State dashboard.DeviceDetailState
}

// TripHistoryData carries the range form and, once submitted, the result
type TripHistoryData struct {
	PageData
	DeviceID   string
	StartInput string
	EndInput   string
	FormError  string
	State      dashboard.TripHistoryState
}

type ErrorData struct {
	PageData
	Message string
}

// RenderLiveMap renders the live map page with its initial state
func RenderLiveMap(w io.Writer, state dashboard.MapState, wsPath string) error {
	return Render(w, "live-map.html", LiveMapData{
		PageData:      PageData{Title: "Live Map"},
		State:         state,
		WebSocketPath: wsPath,
	})
}

func RenderDeviceDetail(w io.Writer, state dashboard.DeviceDetailState, toasts []dashboard.Toast) error {
	return Render(w, "device-detail.html", DeviceDetailData{
		PageData: PageData{Title: "Device " + state.DeviceID, Toasts: toasts},
		State:    state,
	})
}

func RenderTripHistory(w io.Writer, data TripHistoryData) error {
	data.Title = "Trip History"
	slog.Debug("templates.render.trip_history",
		"component", "templates",
		"event", "render.trip_history",
		"device_id", data.DeviceID,
		"points", len(data.State.Points),
	)
	return Render(w, "trip-history.html", data)
}

// RenderError renders the error boundary page
func RenderError(w io.Writer, message string) error {
	return Render(w, "error.html", ErrorData{
		PageData: PageData{Title: "Error"},
		Message:  message,
	})
}

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/edgetensor/fleetdash/internal/metrics"
	"github.com/edgetensor/fleetdash/internal/templates"
)

// Recover turns a panicking handler into an error page instead of a dropped
// connection. API routes get a JSON error, everything else the HTML page with
// a reload button.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			metrics.HTTPPanics.Inc()
			slog.Error("middleware.recover.panic",
				"component", "middleware",
				"event", "handler.panic",
				"path", r.URL.Path,
				"method", r.Method,
				"request_id", RequestIDFromContext(r.Context()),
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)

			if wantsJSON(r) {
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			if err := templates.RenderError(w, ""); err != nil {
				slog.Error("middleware.recover.render_failed",
					"component", "middleware",
					"event", "render.error",
					"error", err,
				)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.URL.Path, "/dashcamAlertFiles/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

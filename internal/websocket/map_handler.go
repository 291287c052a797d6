package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/edgetensor/fleetdash/internal/dashboard"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// selectTimeout bounds a location load started by a viewer. The load outlives
// the viewer's connection since the selection is shared by all viewers.
const selectTimeout = 15 * time.Second

// mapController is the part of dashboard.LiveMap the viewers drive.
type mapController interface {
	State() dashboard.MapState
	Select(ctx context.Context, deviceID string)
	ClosePopup()
}

// MapWebSocketHandler returns an http.HandlerFunc for GET /ws/map.
//
// On connect the viewer receives the current map state; subsequent states and
// toasts arrive through the hub. Viewers send "select" and "close-popup".
func MapWebSocketHandler(hub *Hub, liveMap mapController, exposedDomain string) http.HandlerFunc {
	upgrader := ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || exposedDomain == "" {
				return true
			}
			return strings.TrimSuffix(origin, "/") == strings.TrimSuffix(exposedDomain, "/")
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrader writes the error response itself.
			slog.Error("websocket.handler.upgrade_failed",
				"component", "websocket",
				"event", "handler.upgrade_error",
				"error", err,
			)
			return
		}

		vc := &viewerConn{
			hub:      hub,
			conn:     conn,
			send:     make(chan Message, sendBufferSize),
			viewerID: uuid.NewString(),
		}

		slog.Info("websocket.handler.connected",
			"component", "websocket",
			"event", "handler.connected",
			"viewer_id", vc.viewerID,
			"remote_addr", r.RemoteAddr,
		)

		vc.send <- MapStateMessage(liveMap.State())
		hub.Register(vc)

		baseCtx := context.WithoutCancel(r.Context())

		// writePump runs in a separate goroutine; readPump blocks until the
		// connection closes and then unregisters the viewer.
		go vc.writePump()
		vc.readPump(func(msg Message) {
			switch msg.Type {
			case TypeSelect:
				if msg.DeviceID == "" {
					return
				}
				go func() {
					ctx, cancel := context.WithTimeout(baseCtx, selectTimeout)
					defer cancel()
					liveMap.Select(ctx, msg.DeviceID)
				}()
			case TypeClosePopup:
				liveMap.ClosePopup()
			default:
				slog.Debug("websocket.viewer.unknown_message",
					"component", "websocket",
					"event", "viewer.unknown_message",
					"viewer_id", vc.viewerID,
					"type", msg.Type,
				)
			}
		})
	}
}

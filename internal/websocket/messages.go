package websocket

import "github.com/edgetensor/fleetdash/internal/dashboard"

const (
	// server → viewer
	TypeMapState       = "map-state"
	TypeToast          = "toast"
	TypeDisconnect     = "disconnect"
	TypeDevicesUpdated = "devices-updated"

	// viewer → server
	TypeSelect     = "select"
	TypeClosePopup = "close-popup"
)

// Message is a JSON message sent or received on the live map WebSocket.
type Message struct {
	Type     string              `json:"type"`
	Reason   string              `json:"reason,omitempty"`    // "disconnect"
	DeviceID string              `json:"device_id,omitempty"` // "select"
	State    *dashboard.MapState `json:"state,omitempty"`
	Toast    *dashboard.Toast    `json:"toast,omitempty"`
}

// MapStateMessage carries a full live map state to the viewer.
func MapStateMessage(state dashboard.MapState) Message {
	return Message{Type: TypeMapState, State: &state}
}

func ToastMessage(toast dashboard.Toast) Message {
	return Message{Type: TypeToast, Toast: &toast}
}

// DevicesUpdatedMessage announces that ingest has stored new positions.
func DevicesUpdatedMessage() Message {
	return Message{Type: TypeDevicesUpdated}
}

// DisconnectMessage creates a server→viewer message indicating the connection is closing.
func DisconnectMessage(reason string) Message {
	return Message{Type: TypeDisconnect, Reason: reason}
}

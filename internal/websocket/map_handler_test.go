package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgetensor/fleetdash/internal/dashboard"
	wslib "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMap records the calls viewers make.
type stubMap struct {
	mu       sync.Mutex
	selected []string
	closed   int
}

func (s *stubMap) State() dashboard.MapState {
	return dashboard.MapState{Center: dashboard.FallbackCenter, Zoom: dashboard.LiveMapZoom}
}

func (s *stubMap) Select(_ context.Context, deviceID string) {
	s.mu.Lock()
	s.selected = append(s.selected, deviceID)
	s.mu.Unlock()
}

func (s *stubMap) ClosePopup() {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
}

// wsDialURL converts an httptest server URL to a WebSocket URL.
func wsDialURL(serverURL, path string) string {
	return strings.Replace(serverURL, "http://", "ws://", 1) + path
}

func dialMap(t *testing.T, hub *Hub, m *stubMap) *wslib.Conn {
	t.Helper()
	srv := httptest.NewServer(MapWebSocketHandler(hub, m, ""))
	t.Cleanup(srv.Close)

	conn, resp, err := wslib.DefaultDialer.Dial(wsDialURL(srv.URL, "/ws/map"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *wslib.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestMapHandler_SendsInitialState(t *testing.T) {
	rc, _ := newTestRedis(t)
	hub := NewHub(rc)
	conn := dialMap(t, hub, &stubMap{})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeMapState, msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, dashboard.FallbackCenter, msg.State.Center)

	assert.Eventually(t, func() bool { return hub.ViewerCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMapHandler_SelectAndClose(t *testing.T) {
	rc, _ := newTestRedis(t)
	hub := NewHub(rc)
	m := &stubMap{}
	conn := dialMap(t, hub, m)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeSelect, DeviceID: "veh-1"}))
	require.NoError(t, conn.WriteJSON(Message{Type: TypeSelect}))
	require.NoError(t, conn.WriteJSON(Message{Type: TypeClosePopup}))

	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.selected) == 1 && m.closed == 1
	}, 2*time.Second, 10*time.Millisecond)

	m.mu.Lock()
	assert.Equal(t, []string{"veh-1"}, m.selected)
	m.mu.Unlock()
}

func TestMapHandler_ReceivesBroadcasts(t *testing.T) {
	rc, _ := newTestRedis(t)
	hub := NewHub(rc)
	conn := dialMap(t, hub, &stubMap{})
	readMessage(t, conn)

	require.Eventually(t, func() bool { return hub.ViewerCount() == 1 }, time.Second, 10*time.Millisecond)
	hub.Notifier().Success("Devices loaded")

	msg := readMessage(t, conn)
	assert.Equal(t, TypeToast, msg.Type)
	assert.Equal(t, "Devices loaded", msg.Toast.Message)
}

func TestMapHandler_UnregistersOnClose(t *testing.T) {
	rc, _ := newTestRedis(t)
	hub := NewHub(rc)
	conn := dialMap(t, hub, &stubMap{})
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ViewerCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ViewerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMapHandler_RejectsForeignOrigin(t *testing.T) {
	rc, _ := newTestRedis(t)
	hub := NewHub(rc)
	srv := httptest.NewServer(MapWebSocketHandler(hub, &stubMap{}, "https://fleet.example.com"))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := wslib.DefaultDialer.Dial(wsDialURL(srv.URL, "/ws/map"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

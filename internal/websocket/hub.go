package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/edgetensor/fleetdash/internal/dashboard"
	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/metrics"
	ws "github.com/gorilla/websocket"
)

const (
	pingInterval   = 30 * time.Second
	pongTimeout    = 60 * time.Second
	idleTimeout    = 30 * time.Minute
	writeTimeout   = 10 * time.Second
	readLimit      = 512
	sendBufferSize = 16

	// FleetChannel is the pub/sub channel carrying fleet-wide events between
	// replicas. It is a channel name, not a key, though the key prefix applies.
	FleetChannel = "ws:fleet"
)

// viewerConn holds a single browser's WebSocket connection state.
type viewerConn struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan Message
	viewerID string
}

// FleetEventHandler is called from the hub loop for every fleet event. It must
// not block.
type FleetEventHandler func(ctx context.Context, msg Message)

// Hub is the in-memory registry of live map viewers connected to this
// instance. It bridges fleet events published on Redis by any replica to the
// local viewers.
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]*viewerConn

	redis        *db.RedisClient
	onFleetEvent FleetEventHandler

	ready     chan struct{}
	readyOnce sync.Once
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewHub creates a new Hub backed by the given RedisClient.
func NewHub(redis *db.RedisClient) *Hub {
	return &Hub{
		viewers: make(map[string]*viewerConn),
		redis:   redis,
		ready:   make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

// OnFleetEvent sets the handler for fleet events. Set it before Run.
func (h *Hub) OnFleetEvent(fn FleetEventHandler) {
	h.onFleetEvent = fn
}

// Ready is closed once Redis has confirmed the fleet subscription.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Register adds vc to the hub.
func (h *Hub) Register(vc *viewerConn) {
	h.mu.Lock()
	h.viewers[vc.viewerID] = vc
	count := len(h.viewers)
	h.mu.Unlock()

	metrics.WebSocketViewers.Inc()
	slog.Info("websocket.hub.viewer_registered",
		"component", "websocket",
		"event", "hub.register",
		"viewer_id", vc.viewerID,
		"viewers", count,
	)
}

// Unregister removes a specific connection and closes its send channel.
// Unknown or already removed connections are ignored.
func (h *Hub) Unregister(vc *viewerConn) {
	if vc == nil {
		return
	}

	h.mu.Lock()
	if h.viewers[vc.viewerID] != vc {
		h.mu.Unlock()
		return
	}
	delete(h.viewers, vc.viewerID)
	close(vc.send)
	count := len(h.viewers)
	h.mu.Unlock()

	metrics.WebSocketViewers.Dec()
	slog.Info("websocket.hub.viewer_unregistered",
		"component", "websocket",
		"event", "hub.unregister",
		"viewer_id", vc.viewerID,
		"viewers", count,
	)
}

// IsConnected reports whether a viewer with the given id is registered in this
// Hub instance.
func (h *Hub) IsConnected(viewerID string) bool {
	h.mu.RLock()
	_, ok := h.viewers[viewerID]
	h.mu.RUnlock()
	return ok
}

func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// PublishFleetEvent sends msg to every replica's hub via Redis.
func (h *Hub) PublishFleetEvent(ctx context.Context, msg Message) error {
	if err := h.redis.Publish(ctx, FleetChannel, msg); err != nil {
		slog.Error("websocket.hub.publish_failed",
			"component", "websocket",
			"event", "hub.publish_error",
			"channel", FleetChannel,
			"error", err,
		)
		return err
	}
	return nil
}

// PublishDevicesUpdated announces fresh ingest data to all replicas.
func (h *Hub) PublishDevicesUpdated(ctx context.Context) {
	_ = h.PublishFleetEvent(ctx, DevicesUpdatedMessage())
}

// BroadcastLocal sends msg to every viewer connected to this instance.
func (h *Hub) BroadcastLocal(msg Message) {
	// The read lock is held while sending so a concurrent Unregister cannot
	// close a send channel underneath us. Sends never block.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, vc := range h.viewers {
		// A slow viewer must not stall the others. Dropped messages are
		// superseded by the next state push.
		select {
		case vc.send <- msg:
		default:
			slog.Warn("websocket.hub.send_buffer_full",
				"component", "websocket",
				"event", "hub.drop_message",
				"viewer_id", vc.viewerID,
				"type", msg.Type,
			)
		}
	}
}

// Notifier returns a dashboard notifier that pushes toasts to local viewers.
func (h *Hub) Notifier() dashboard.Notifier {
	return dashboard.NotifierFunc(func(t dashboard.Toast) {
		h.BroadcastLocal(ToastMessage(t))
	})
}

// Run starts the hub's Redis pub/sub listener. Call it in a goroutine.
// It blocks until ctx is cancelled or Close is called.
func (h *Hub) Run(ctx context.Context) {
	pubSub := h.redis.Subscribe(ctx, FleetChannel)
	defer pubSub.Close()

	// Events() delivers the subscription confirmation as well as messages, so
	// Ready only fires once a PUBLISH is guaranteed to reach us.
	eventCh := pubSub.Events()

	for {
		select {
		case <-ctx.Done():
			h.closeAllConnections("server shutting down")
			return
		case <-h.closeCh:
			h.closeAllConnections("hub closed")
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			switch event.Kind {
			case db.PubSubSubscribed:
				if event.Channel == FleetChannel {
					h.readyOnce.Do(func() { close(h.ready) })
				}

			case db.PubSubMessage:
				var msg Message
				if err := json.Unmarshal([]byte(event.Payload), &msg); err != nil {
					slog.Warn("websocket.hub.bad_redis_payload",
						"component", "websocket",
						"event", "hub.decode_error",
						"channel", event.Channel,
						"error", err,
					)
					continue
				}
				if h.onFleetEvent != nil {
					h.onFleetEvent(ctx, msg)
				}
				h.BroadcastLocal(msg)
			}
		}
	}
}

// closeAllConnections sends a disconnect message to every viewer and closes
// their send channels, causing their write pumps to terminate.
func (h *Hub) closeAllConnections(reason string) {
	msg := DisconnectMessage(reason)

	h.mu.Lock()
	n := len(h.viewers)
	for id, vc := range h.viewers {
		select {
		case vc.send <- msg:
		default:
		}
		close(vc.send)
		delete(h.viewers, id)
	}
	h.mu.Unlock()

	metrics.WebSocketViewers.Sub(float64(n))
}

// Close shuts down the hub, disconnecting all viewers. Safe to call multiple times.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closeCh) })
}

// writePump runs in a goroutine per viewer. It writes outgoing messages,
// sends periodic pings, and closes the connection after idleTimeout.
func (vc *viewerConn) writePump() {
	pingTicker := time.NewTicker(pingInterval)
	idleTimer := time.NewTimer(idleTimeout)
	defer func() {
		pingTicker.Stop()
		idleTimer.Stop()
		vc.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-vc.send:
			vc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				vc.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")) //nolint:errcheck
				return
			}
			if err := vc.conn.WriteJSON(msg); err != nil {
				return
			}
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(idleTimeout)

		case <-pingTicker.C:
			vc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := vc.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}

		case <-idleTimer.C:
			vc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			vc.conn.WriteJSON(DisconnectMessage("idle timeout"))   //nolint:errcheck
			return
		}
	}
}

// readPump runs in the handler goroutine and hands every viewer message to
// handle. When it returns the viewer is unregistered.
func (vc *viewerConn) readPump(handle func(Message)) {
	defer func() {
		vc.hub.Unregister(vc)
		vc.conn.Close()
	}()

	vc.conn.SetReadLimit(readLimit)
	vc.conn.SetReadDeadline(time.Now().Add(pongTimeout)) //nolint:errcheck
	vc.conn.SetPongHandler(func(string) error {
		return vc.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg Message
		if err := vc.conn.ReadJSON(&msg); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseAbnormalClosure, ws.CloseNormalClosure) {
				slog.Warn("websocket.viewer.unexpected_close",
					"component", "websocket",
					"event", "viewer.read_error",
					"viewer_id", vc.viewerID,
					"error", err,
				)
			}
			break
		}
		handle(msg)
	}
}

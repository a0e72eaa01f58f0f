package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/loginguard/platform/internal/domain"
)

// Rooms.
const (
	// RoomOperators receives every verdict.
	RoomOperators = "operators"

	accountRoomPrefix = "account:"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

// AccountRoom is the room receiving one account's verdicts.
func AccountRoom(username string) string { return accountRoomPrefix + username }

// VerdictHub fans verdicts out to WebSocket subscribers and keeps the latest
// verdict per username for the dashboard. A verdict that arrives after its
// session ended is still kept as that user's latest.
type VerdictHub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*WSConn // room -> connID -> conn
	latest map[string]domain.VerdictNotice
	logger *slog.Logger
}

// WSConn is one subscriber. Send is closed when the hub drops it.
type WSConn struct {
	ID   string
	Send chan []byte
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewVerdictHub creates an empty hub.
func NewVerdictHub(logger *slog.Logger) *VerdictHub {
	return &VerdictHub{
		rooms:  make(map[string]map[string]*WSConn),
		latest: make(map[string]domain.VerdictNotice),
		logger: logger,
	}
}

// NewWSConn creates a subscriber with a buffered send queue.
func NewWSConn() *WSConn {
	return &WSConn{ID: uuid.New().String(), Send: make(chan []byte, wsSendBuffer)}
}

// PublishVerdict records n as the latest verdict for its username and pushes
// it to the account's room and the operators room. It never blocks.
func (h *VerdictHub) PublishVerdict(n domain.VerdictNotice) {
	h.mu.Lock()
	h.latest[n.Username] = n
	h.mu.Unlock()

	h.Publish(AccountRoom(n.Username), "verdict", n)
	h.Publish(RoomOperators, "verdict", n)
}

// Latest returns the most recent verdict for username.
func (h *VerdictHub) Latest(username string) (domain.VerdictNotice, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.latest[username]
	return n, ok
}

// Join adds a connection to a room.
func (h *VerdictHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

// Leave removes a connection from a room.
func (h *VerdictHub) Leave(room string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends a message to all connections in a room. Slow subscribers
// lose messages rather than stall the publisher.
func (h *VerdictHub) Publish(room string, event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *VerdictHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *VerdictHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Serve pumps messages from room to ws until either side goes away. It
// blocks; the caller owns nothing after it returns.
func (h *VerdictHub) Serve(ws *websocket.Conn, room string) {
	conn := NewWSConn()
	h.Join(room, conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("ws read error", "conn_id", conn.ID, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		h.Leave(room, conn.ID)
		_ = ws.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-conn.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown closes all connections.
func (h *VerdictHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			close(conn.Send)
		}
		delete(h.rooms, room)
	}
}

package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"battle-chat/internal/models"
	"battle-chat/internal/observability"
)

// Hub tracks which websocket connections are subscribed to which room.
type Hub struct {
	rooms    map[int]map[*websocket.Conn]bool
	connInfo map[int]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int]map[*websocket.Conn]bool),
		connInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection to a room.
func (h *Hub) AddClient(roomID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[roomID][conn] = true
	if _, ok := h.connInfo[roomID]; !ok {
		h.connInfo[roomID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[roomID][conn] = info
	observability.IncWSActive()
}

// RemoveClient removes a connection from a room.
func (h *Hub) RemoveClient(roomID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		if _, present := conns[conn]; present {
			delete(conns, conn)
			observability.DecWSActive()
		}
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if infos, ok := h.connInfo[roomID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, roomID)
		}
	}
}

// BroadcastMessage sends a posted message to every subscriber of its room.
func (h *Hub) BroadcastMessage(roomID int, msg models.Message) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[roomID]))
	for conn := range h.rooms[roomID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	event := models.RoomEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn().Err(err).Int("room_id", roomID).Msg("websocket write error")
			conn.Close()
			h.RemoveClient(roomID, conn)
		}
	}
	observability.IncWSEvent("message")
}

// SubscriberCount reports how many connections watch a room.
func (h *Hub) SubscriberCount(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Package ws is the room relay: it fans every frame out to all members of
// the room it was sent in.
package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/internal/logx"
)

type Room struct {
	clients map[*Client]bool
}

type Hub struct {
	rooms map[string]*Room
	mu    sync.Mutex
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]*Room),
		log:   logx.Or(log),
	}
}

func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = &Room{
			clients: make(map[*Client]bool),
		}
		h.rooms[roomID] = room
	}

	room.clients[c] = true
}

// Leave removes c and closes its send queue. It is a no-op when c was
// already dropped.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	h.remove(roomID, room, c)
}

func (h *Hub) remove(roomID string, room *Room, c *Client) {
	if !room.clients[c] {
		return
	}
	delete(room.clients, c)
	close(c.send)

	if len(room.clients) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast queues msg for every member, the sender included. Members whose
// queue is full are dropped.
func (h *Hub) Broadcast(roomID string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}

	for c := range room.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("slow client dropped", zap.String("room", roomID), zap.String("client", c.id))
			h.remove(roomID, room, c)
		}
	}
}

// Count is the number of members in roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		return len(room.clients)
	}
	return 0
}

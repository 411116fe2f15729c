package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/db"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
	"github.com/Tk21111/whiteboard_sync/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventLog receives drawing frames for the room history. Writes must not
// block the reader.
type EventLog interface {
	WriteEvent(db.Event)
}

type Options struct {
	// RateLimit is frames per second per connection; zero disables it.
	RateLimit float64
	RateBurst int
}

// Relay serves /ws/{roomId}.
type Relay struct {
	hub       *Hub
	snapshots db.SnapshotStore
	chat      db.ChatStore
	events    EventLog
	opts      Options
}

func NewRelay(hub *Hub, snapshots db.SnapshotStore, chat db.ChatStore, events EventLog, opts Options) *Relay {
	return &Relay{
		hub:       hub,
		snapshots: snapshots,
		chat:      chat,
		events:    events,
		opts:      opts,
	}
}

func (rl *Relay) limiter() *rate.Limiter {
	if rl.opts.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := rl.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.opts.RateLimit), burst)
}

func (rl *Relay) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}

	ctx := logx.WithRoom(r.Context(), roomID)
	log := logx.From(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade", zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		roomID:  roomID,
		limiter: rl.limiter(),
		log:     log.With(zap.String("client", id)),
	}

	// the request context ends with the hijack, keep only its values
	ctx = context.WithoutCancel(ctx)

	/* --------------------------------------------------
	   1. SNAPSHOT + CHAT_HISTORY -> NEW CLIENT
	   -------------------------------------------------- */

	rl.bootstrap(ctx, client)

	/* --------------------------------------------------
	   2. JOIN ROOM
	   -------------------------------------------------- */

	rl.hub.Join(roomID, client)
	log.Info("join room", zap.String("client", id), zap.Int("members", rl.hub.Count(roomID)))

	/* --------------------------------------------------
	   3. START IO
	   -------------------------------------------------- */

	go client.write()
	client.read(ctx, rl)

	log.Info("leave room", zap.String("client", id))
}

func (rl *Relay) bootstrap(ctx context.Context, c *Client) {
	log := logx.From(ctx)

	if data, ok, err := rl.snapshots.Snapshot(ctx, c.roomID); err != nil {
		log.Error("load snapshot", zap.Error(err))
	} else if ok {
		if msg, err := middleware.EncodeEnvelope(config.TypeSnapshot, data); err == nil {
			c.send <- msg
		}
	}

	history, err := rl.chat.ChatHistory(ctx, c.roomID)
	if err != nil {
		log.Error("load chat history", zap.Error(err))
		return
	}
	if len(history) > 0 {
		if msg, err := middleware.EncodeEnvelope(config.TypeChatHistory, history); err == nil {
			c.send <- msg
		}
	}
}

// relay persists what needs persisting and fans the frame out unchanged.
func (rl *Relay) relay(ctx context.Context, c *Client, env config.Envelope, msg []byte) {
	switch {
	case env.Type == config.TypeChat:
		var m config.ChatMessage
		if err := middleware.DecodeData(env, &m); err != nil {
			c.log.Warn("drop invalid chat", zap.Error(err))
			return
		}
		if err := rl.chat.AddChat(ctx, c.roomID, m); err != nil {
			c.log.Error("persist chat", zap.Error(err))
			return
		}

	case config.IsRasterType(env.Type):
		if rl.events != nil {
			rl.events.WriteEvent(db.Event{RoomID: c.roomID, Type: env.Type, Payload: msg})
		}
	}

	rl.hub.Broadcast(c.roomID, msg)
}

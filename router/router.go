// Package router dispatches inbound room frames to the raster and chat log.
package router

import (
	"errors"
	"image"
	"sort"

	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/canvas"
	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
	"github.com/Tk21111/whiteboard_sync/middleware"
)

type Raster interface {
	DrawSegment(config.DrawData) error
	EraseSegment(config.EraseData) error
	RenderShape(config.ShapeData) error
	DrawSnapshot(image.Image) error
	Clear()
}

type Chat interface {
	Replace([]config.ChatMessage)
	Append(config.ChatMessage)
}

// Decoder decodes a snapshot payload asynchronously. done must run on the
// same loop that calls Dispatch.
type Decoder interface {
	Decode(payload string, done func(image.Image, error))
}

type handler func(env config.Envelope) error

type queued struct {
	seq uint64
	env config.Envelope
}

// Router is not safe for concurrent use; all calls, including Decoder
// completions, happen on the session loop.
type Router struct {
	raster    Raster
	chat      Chat
	snapshots Decoder
	log       *zap.Logger

	handlers map[string]handler

	seq     uint64
	gen     uint64
	loading bool
	pending []queued
}

func New(raster Raster, chat Chat, snapshots Decoder, log *zap.Logger) *Router {
	r := &Router{
		raster:    raster,
		chat:      chat,
		snapshots: snapshots,
		log:       logx.Or(log),
	}

	r.handlers = map[string]handler{
		config.TypeSnapshot:    r.snapshot,
		config.TypeChatHistory: r.chatHistory,
		config.TypeChat:        r.chatMessage,
		config.TypeDraw:        r.draw,
		config.TypeShapeAdd:    r.shape,
		config.TypeErase:       r.erase,
		config.TypeClear:       r.clear,
	}

	return r
}

// Dispatch applies one inbound frame. Malformed frames and unknown types are
// dropped; nothing here returns an error to the socket reader.
func (r *Router) Dispatch(frame []byte) {
	env, err := middleware.DecodeEnvelope(frame)
	if err != nil {
		r.log.Warn("drop malformed frame", zap.Error(err), zap.Int("bytes", len(frame)))
		return
	}

	r.seq++
	r.route(r.seq, env)
}

// Pending is the number of raster frames held back by a snapshot decode.
func (r *Router) Pending() int { return len(r.pending) }

// Loading reports whether a snapshot decode is in flight.
func (r *Router) Loading() bool { return r.loading }

func (r *Router) route(seq uint64, env config.Envelope) {
	h, ok := r.handlers[env.Type]
	if !ok {
		r.log.Debug("drop unknown frame", zap.String("type", env.Type), zap.Uint64("seq", seq))
		return
	}

	if r.loading && config.IsRasterType(env.Type) {
		r.pending = append(r.pending, queued{seq: seq, env: env})
		return
	}

	r.apply(seq, env, h)
}

func (r *Router) apply(seq uint64, env config.Envelope, h handler) {
	err := h(env)
	switch {
	case err == nil:
	case errors.Is(err, canvas.ErrNotReady):
		r.log.Debug("canvas not ready, frame dropped", zap.String("type", env.Type), zap.Uint64("seq", seq))
	default:
		r.log.Warn("drop invalid frame", zap.String("type", env.Type), zap.Uint64("seq", seq), zap.Error(err))
	}
}

func (r *Router) snapshot(env config.Envelope) error {
	var payload string
	if err := middleware.DecodeData(env, &payload); err != nil {
		return err
	}

	r.gen++
	gen := r.gen
	r.loading = true

	r.snapshots.Decode(payload, func(img image.Image, err error) {
		r.snapshotDone(gen, img, err)
	})
	return nil
}

func (r *Router) snapshotDone(gen uint64, img image.Image, err error) {
	if gen != r.gen {
		// superseded by a newer snapshot
		return
	}
	r.loading = false

	if err != nil {
		r.log.Warn("snapshot decode failed", zap.Error(err))
	} else if err := r.raster.DrawSnapshot(img); errors.Is(err, canvas.ErrNotReady) {
		r.log.Debug("snapshot held until first resize")
	} else if err != nil {
		r.log.Warn("snapshot not drawn", zap.Error(err))
	}

	r.flush()
}

func (r *Router) flush() {
	pending := r.pending
	r.pending = nil

	sort.SliceStable(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })

	if len(pending) > 0 {
		r.log.Debug("replay frames after snapshot", zap.Int("count", len(pending)))
	}
	for _, q := range pending {
		r.apply(q.seq, q.env, r.handlers[q.env.Type])
	}
}

func (r *Router) chatHistory(env config.Envelope) error {
	var history []config.ChatMessage
	if err := middleware.DecodeData(env, &history); err != nil {
		return err
	}
	r.chat.Replace(history)
	return nil
}

func (r *Router) chatMessage(env config.Envelope) error {
	var m config.ChatMessage
	if err := middleware.DecodeData(env, &m); err != nil {
		return err
	}
	r.chat.Append(m)
	return nil
}

func (r *Router) draw(env config.Envelope) error {
	var d config.DrawData
	if err := middleware.DecodeData(env, &d); err != nil {
		return err
	}
	return r.raster.DrawSegment(d)
}

func (r *Router) erase(env config.Envelope) error {
	var d config.EraseData
	if err := middleware.DecodeData(env, &d); err != nil {
		return err
	}
	return r.raster.EraseSegment(d)
}

func (r *Router) shape(env config.Envelope) error {
	var d config.ShapeData
	if err := middleware.DecodeData(env, &d); err != nil {
		return err
	}
	return r.raster.RenderShape(d)
}

func (r *Router) clear(config.Envelope) error {
	r.raster.Clear()
	return nil
}

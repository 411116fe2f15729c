// Package session ties one room's raster, chat log and socket together and
// turns pointer input into rendered, broadcast drawing operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/canvas"
	"github.com/Tk21111/whiteboard_sync/chat"
	"github.com/Tk21111/whiteboard_sync/client"
	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
	"github.com/Tk21111/whiteboard_sync/middleware"
	"github.com/Tk21111/whiteboard_sync/room"
	"github.com/Tk21111/whiteboard_sync/router"
)

type Tool string

const (
	ToolDraw   Tool = "draw"
	ToolEraser Tool = "eraser"
	ToolRect   Tool = config.ShapeRect
	ToolLine   Tool = config.ShapeLine
	ToolArrow  Tool = config.ShapeArrow
)

func (t Tool) shape() bool {
	return t == ToolRect || t == ToolLine || t == ToolArrow
}

const (
	defaultColor     = "#3B82F6"
	defaultLineWidth = 5

	noticeSaved     = "Whiteboard saved!"
	noticeSaveError = "Failed to save whiteboard."
	noticeNotReady  = "Canvas not ready."
)

type Options struct {
	RoomID string
	WSURL  string
	APIURL string

	// Width and Height, when set, size the canvas before the socket opens
	// so the join-time snapshot has somewhere to land.
	Width  float64
	Height float64

	Reconnect       bool
	MaxRetries      int
	RefetchOnResize bool

	// Prefs holds the display name. Nil uses the default prefs file.
	Prefs *room.Prefs

	Dialer     *websocket.Dialer
	HTTPClient *http.Client
	Logger     *zap.Logger

	// Notify receives one-shot user notices such as save results.
	Notify func(string)
}

// FromSettings fills the connection fields of Options from s.
func FromSettings(s config.Settings, roomID string) Options {
	return Options{
		RoomID:          roomID,
		WSURL:           s.WSURL,
		APIURL:          s.APIURL,
		Reconnect:       s.Reconnect,
		MaxRetries:      s.ReconnectMax,
		RefetchOnResize: s.RefetchOnResize,
	}
}

// Session is one client's view of one room. Every mutation runs on a
// single loop goroutine; public methods hand work to it and wait.
type Session struct {
	roomID string
	opts   Options
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loop   *loop
	wg     sync.WaitGroup
	once   sync.Once

	canvas *canvas.Canvas
	chat   *chat.Log
	router *router.Router
	conn   *client.Connection
	rest   *client.REST
	prefs  *room.Prefs

	// loop-owned
	box        canvas.Box
	tool       Tool
	color      string
	lineWidth  float64
	drawing    bool
	last       config.Point
	shapeStart config.Point
	shapeEnd   config.Point
	userName   string
}

func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.RoomID == "" {
		return nil, errors.New("session: room id required")
	}
	if opts.Prefs == nil {
		path, err := room.DefaultPrefsPath()
		if err != nil {
			return nil, fmt.Errorf("session: prefs: %w", err)
		}
		opts.Prefs = room.NewPrefs(path)
	}

	log := logx.Or(opts.Logger).With(zap.String("room", opts.RoomID))
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		roomID:    opts.RoomID,
		opts:      opts,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		loop:      newLoop(),
		canvas:    canvas.New(),
		chat:      &chat.Log{},
		rest:      client.NewREST(opts.APIURL, opts.HTTPClient, log),
		prefs:     opts.Prefs,
		tool:      ToolDraw,
		color:     defaultColor,
		lineWidth: defaultLineWidth,
	}
	s.userName = s.prefs.UserName()

	loader := canvas.NewSnapshotLoader(s.loop.post, log)
	s.router = router.New(s.canvas, s.chat, loader, log)

	if s.canvas.Resize(opts.Width, opts.Height) {
		s.box.Width, s.box.Height = opts.Width, opts.Height
	}

	s.conn = client.Dial(ctx, client.RoomURL(opts.WSURL, opts.RoomID), client.Options{
		Dialer:     opts.Dialer,
		Reconnect:  opts.Reconnect,
		MaxRetries: opts.MaxRetries,
		Logger:     log,
		OnMessage: func(frame []byte) {
			s.loop.post(func() { s.router.Dispatch(frame) })
		},
	})

	log.Info("session opened", zap.String("name", room.DisplayName(opts.RoomID)))
	return s, nil
}

// Close stops input handling, closes the socket and stops the loop.
// Callbacks still in flight are dropped.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.loop.stop()
		err = multierr.Append(err, s.conn.Close())
		s.wg.Wait()
		s.log.Info("session closed")
	})
	return err
}

func (s *Session) RoomID() string   { return s.roomID }
func (s *Session) RoomName() string { return room.DisplayName(s.roomID) }

func (s *Session) State() client.State { return s.conn.State() }

// SetBox records where the canvas sits on screen, for pointer mapping.
func (s *Session) SetBox(b canvas.Box) {
	s.loop.call(func() { s.box = b })
}

// Resize re-creates the raster at the new logical size, discarding its
// content. It reports false while the size is empty.
func (s *Session) Resize(w, h float64) bool {
	var ok bool
	s.loop.call(func() {
		ok = s.canvas.Resize(w, h)
		if !ok {
			return
		}
		s.box.Width, s.box.Height = w, h
		if s.opts.RefetchOnResize {
			s.refetch()
		}
	})
	return ok
}

func (s *Session) SetTool(t Tool) {
	s.loop.call(func() { s.tool = t })
}

func (s *Session) SetColor(c string) {
	s.loop.call(func() { s.color = c })
}

func (s *Session) SetLineWidth(w float64) {
	s.loop.call(func() { s.lineWidth = w })
}

func (s *Session) PointerDown(clientX, clientY float64) {
	s.loop.call(func() {
		p, ok := canvas.ToUnit(clientX, clientY, s.box)
		if !ok {
			return
		}
		s.drawing = true
		s.last, s.shapeStart, s.shapeEnd = p, p, p
	})
}

// PointerMove renders and sends one segment for the freehand tools. It
// does nothing unless the socket is open.
func (s *Session) PointerMove(clientX, clientY float64) {
	s.loop.call(func() {
		if !s.drawing || s.conn.State() != client.Open {
			return
		}
		p, ok := canvas.ToUnit(clientX, clientY, s.box)
		if !ok {
			return
		}

		seg := []config.Point{s.last, p}
		switch s.tool {
		case ToolDraw:
			d := config.DrawData{Points: seg, Color: s.color, LineWidth: s.lineWidth}
			if s.local(s.canvas.DrawSegment(d)) {
				s.conn.Send(config.TypeDraw, d)
			}
		case ToolEraser:
			d := config.EraseData{Points: seg, LineWidth: s.lineWidth}
			if s.local(s.canvas.EraseSegment(d)) {
				s.conn.Send(config.TypeErase, d)
			}
		default:
			s.shapeEnd = p
		}
		s.last = p
	})
}

// PointerUp commits a shape. Like PointerMove it needs an open socket.
func (s *Session) PointerUp(clientX, clientY float64) {
	s.loop.call(func() {
		if !s.drawing {
			return
		}
		s.drawing = false
		if s.conn.State() != client.Open || !s.tool.shape() {
			return
		}

		end, ok := canvas.ToUnit(clientX, clientY, s.box)
		if !ok {
			return
		}
		d := s.shapeData(end)
		if s.local(s.canvas.RenderShape(d)) {
			s.conn.Send(config.TypeShapeAdd, d)
		}
	})
}

// PendingShape is the shape a release at the last pointer position would
// commit. It is not part of the raster.
func (s *Session) PendingShape() (config.ShapeData, bool) {
	var (
		d  config.ShapeData
		ok bool
	)
	s.loop.call(func() {
		if !s.drawing || !s.tool.shape() {
			return
		}
		d, ok = s.shapeData(s.shapeEnd), true
	})
	return d, ok
}

func (s *Session) shapeData(end config.Point) config.ShapeData {
	return config.ShapeData{
		Type:      string(s.tool),
		X1:        s.shapeStart.X,
		Y1:        s.shapeStart.Y,
		X2:        end.X,
		Y2:        end.Y,
		Color:     s.color,
		LineWidth: s.lineWidth,
	}
}

// ClearCanvas wipes the local raster and, when open, the room.
func (s *Session) ClearCanvas() {
	s.loop.call(func() {
		s.canvas.Clear()
		if s.conn.State() == client.Open {
			s.conn.Send(config.TypeClear, nil)
		}
	})
}

// SendChat sends text under the current display name. The message shows up
// in Chat only once the server echoes it back.
func (s *Session) SendChat(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	var sent bool
	s.loop.call(func() {
		sent = s.conn.Send(config.TypeChat, config.ChatMessage{User: s.userName, Text: text})
	})
	return sent
}

func (s *Session) Chat() []config.ChatMessage {
	var msgs []config.ChatMessage
	s.loop.call(func() { msgs = s.chat.Messages() })
	return msgs
}

func (s *Session) UserName() string {
	var name string
	s.loop.call(func() { name = s.userName })
	return name
}

func (s *Session) SetUserName(name string) error {
	s.loop.call(func() { s.userName = name })
	return s.prefs.SetUserName(name)
}

// Raster returns a copy of the backing image, or nil before the first
// successful Resize.
func (s *Session) Raster() *image.RGBA {
	var img *image.RGBA
	s.loop.call(func() { img = s.canvas.Clone() })
	return img
}

// Pending is the number of drawing frames waiting on a snapshot decode.
func (s *Session) Pending() int {
	var n int
	s.loop.call(func() { n = s.router.Pending() })
	return n
}

// Save uploads the raster as the room snapshot and reports the outcome
// through Options.Notify.
func (s *Session) Save(ctx context.Context) error {
	var (
		url string
		err error
	)
	if !s.loop.call(func() { url, err = s.canvas.DataURL() }) {
		err = canvas.ErrNotReady
	}
	if err != nil {
		s.notify(noticeNotReady)
		return err
	}

	if err := s.rest.Save(ctx, s.roomID, url); err != nil {
		s.log.Warn("save failed", zap.Error(err))
		s.notify(noticeSaveError)
		return err
	}
	s.notify(noticeSaved)
	return nil
}

func (s *Session) notify(msg string) {
	if s.opts.Notify != nil {
		s.opts.Notify(msg)
	}
}

// local reports whether a locally initiated operation rendered.
func (s *Session) local(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, canvas.ErrNotReady) {
		s.log.Debug("canvas not ready, input dropped")
	} else {
		s.log.Warn("local render", zap.Error(err))
	}
	return false
}

// refetch pulls the stored snapshot after a resize and feeds it through the
// router as if the server had sent it. Runs on the loop.
func (s *Session) refetch() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		data, ok, err := s.rest.Snapshot(s.ctx, s.roomID)
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn("snapshot refetch", zap.Error(err))
			}
			return
		}
		if !ok {
			return
		}

		frame, err := middleware.EncodeEnvelope(config.TypeSnapshot, data)
		if err != nil {
			return
		}
		s.loop.post(func() { s.router.Dispatch(frame) })
	}()
}

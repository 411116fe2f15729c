// Package client holds the room socket and the REST calls a whiteboard
// session makes against the backend.
package client

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/internal/logx"
	"github.com/Tk21111/whiteboard_sync/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// snapshots arrive as one base64 frame
	maxMessageSize = 32 << 20
	sendBuffer     = 256
)

type State int

const (
	Connecting State = iota
	Open
	Reconnecting
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return "unknown"
}

type Options struct {
	Dialer *websocket.Dialer

	// Reconnect re-dials after the socket drops, up to MaxRetries attempts
	// in a row with jittered exponential backoff.
	Reconnect  bool
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Logger *zap.Logger

	// OnMessage receives inbound frames in socket order, from the reader
	// goroutine.
	OnMessage     func([]byte)
	OnOpen        func()
	OnStateChange func(State)
}

func (o *Options) defaults() {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 250 * time.Millisecond
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = 10 * time.Second
	}
}

// Connection is one room socket. Outbound frames are fire-and-forget:
// anything sent while the socket is not open is discarded.
type Connection struct {
	url  string
	opts Options
	log  *zap.Logger

	mu    sync.Mutex
	state State
	ws    *websocket.Conn
	out   chan []byte

	cancel context.CancelFunc
	done   chan struct{}
}

// RoomURL joins the socket base and a room id into <base>/ws/<roomId>.
func RoomURL(base, roomID string) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(roomID)
}

// Dial starts connecting in the background and returns immediately in the
// Connecting state.
func Dial(ctx context.Context, rawURL string, opts Options) *Connection {
	opts.defaults()
	ctx, cancel := context.WithCancel(ctx)

	c := &Connection{
		url:    rawURL,
		opts:   opts,
		log:    logx.Or(opts.Logger).With(zap.String("url", rawURL)),
		state:  Connecting,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.run(ctx)
	return c
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send encodes and queues one frame. It reports whether the frame was
// queued on an open socket.
func (c *Connection) Send(typ string, data any) bool {
	c.mu.Lock()
	state, out := c.state, c.out
	c.mu.Unlock()

	if state != Open || out == nil {
		c.log.Debug("discard frame, socket not open", zap.String("type", typ), zap.Stringer("state", state))
		return false
	}

	b, err := middleware.EncodeEnvelope(typ, data)
	if err != nil {
		c.log.Warn("encode frame", zap.String("type", typ), zap.Error(err))
		return false
	}

	select {
	case out <- b:
		return true
	default:
		c.log.Warn("send buffer full, frame dropped", zap.String("type", typ))
		return false
	}
}

// Close tears the socket down and waits for its goroutines to stop.
func (c *Connection) Close() error {
	c.cancel()

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	var err error
	if ws != nil {
		err = multierr.Append(err, ignoreClosed(ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))))
		err = multierr.Append(err, ignoreClosed(ws.Close()))
	}

	<-c.done
	return err
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// Done is closed once the connection reaches a terminal state.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.log.Info("connection state", zap.Stringer("state", s))
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	failures := 0
	for {
		ws, _, err := c.opts.Dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			failures = 0
			err = c.serve(ctx, ws)
		}
		if ctx.Err() != nil {
			c.setState(Closed)
			return
		}

		if !c.opts.Reconnect {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setState(Closed)
			} else {
				c.log.Warn("socket failed", zap.Error(err))
				c.setState(Errored)
			}
			return
		}

		failures++
		if failures > c.opts.MaxRetries {
			c.log.Warn("giving up reconnecting", zap.Int("attempts", failures-1), zap.Error(err))
			c.setState(Errored)
			return
		}

		wait := backoff(failures, c.opts.MinBackoff, c.opts.MaxBackoff)
		c.log.Info("reconnecting", zap.Int("attempt", failures), zap.Duration("wait", wait), zap.Error(err))
		c.setState(Reconnecting)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			c.setState(Closed)
			return
		}
	}
}

// serve runs one open socket until it fails or ctx ends.
func (c *Connection) serve(ctx context.Context, ws *websocket.Conn) error {
	out := make(chan []byte, sendBuffer)

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		ws.Close()
		return ctx.Err()
	}
	c.ws, c.out = ws, out
	c.mu.Unlock()

	c.setState(Open)
	if c.opts.OnOpen != nil {
		c.opts.OnOpen()
	}

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ws, out, stop)
	}()

	err := c.readPump(ws)

	c.mu.Lock()
	c.ws, c.out = nil, nil
	c.mu.Unlock()

	close(stop)
	ws.Close()
	<-writerDone

	return err
}

func (c *Connection) readPump(ws *websocket.Conn) error {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(data)
		}
	}
}

func (c *Connection) writePump(ws *websocket.Conn, out <-chan []byte, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case msg := <-out:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				ws.Close()
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		}
	}
}

// backoff doubles from lo per attempt, capped at hi, with the upper half
// jittered.
func backoff(attempt int, lo, hi time.Duration) time.Duration {
	d := lo
	for i := 1; i < attempt && d < hi; i++ {
		d *= 2
	}
	if d > hi {
		d = hi
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

package router

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Tk21111/whiteboard_sync/canvas"
	"github.com/Tk21111/whiteboard_sync/chat"
	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/middleware"
)

type mockRaster struct {
	calls []string
	err   error
}

func (m *mockRaster) DrawSegment(d config.DrawData) error {
	m.calls = append(m.calls, "draw:"+d.Color)
	return m.err
}

func (m *mockRaster) EraseSegment(d config.EraseData) error {
	m.calls = append(m.calls, fmt.Sprintf("erase:%v", d.LineWidth))
	return m.err
}

func (m *mockRaster) RenderShape(d config.ShapeData) error {
	m.calls = append(m.calls, "shape:"+d.Type)
	return m.err
}

func (m *mockRaster) DrawSnapshot(img image.Image) error {
	m.calls = append(m.calls, fmt.Sprintf("snapshot:%d", img.Bounds().Dx()))
	return nil
}

func (m *mockRaster) Clear() { m.calls = append(m.calls, "clear") }

type pendingDecode struct {
	payload string
	done    func(image.Image, error)
}

// fakeDecoder holds completions until the test releases them.
type fakeDecoder struct {
	pending []pendingDecode
}

func (f *fakeDecoder) Decode(payload string, done func(image.Image, error)) {
	f.pending = append(f.pending, pendingDecode{payload: payload, done: done})
}

func (f *fakeDecoder) complete(t *testing.T, i int, width int) {
	t.Helper()
	require.Less(t, i, len(f.pending))
	f.pending[i].done(image.NewRGBA(image.Rect(0, 0, width, 1)), nil)
}

func frame(t *testing.T, typ string, data any) []byte {
	t.Helper()
	b, err := middleware.EncodeEnvelope(typ, data)
	require.NoError(t, err)
	return b
}

func drawFrame(t *testing.T, color string) []byte {
	return frame(t, config.TypeDraw, config.DrawData{
		Points:    []config.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}},
		Color:     color,
		LineWidth: 3,
	})
}

func newRouter() (*Router, *mockRaster, *chat.Log, *fakeDecoder) {
	raster := &mockRaster{}
	log := &chat.Log{}
	dec := &fakeDecoder{}
	return New(raster, log, dec, nil), raster, log, dec
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name  string
		frame func(t *testing.T) []byte
		want  []string
	}{
		{name: "draw", frame: func(t *testing.T) []byte { return drawFrame(t, "#111111") }, want: []string{"draw:#111111"}},
		{
			name: "erase",
			frame: func(t *testing.T) []byte {
				return frame(t, config.TypeErase, config.EraseData{Points: []config.Point{{}, {X: 1}}, LineWidth: 7})
			},
			want: []string{"erase:7"},
		},
		{
			name: "shape",
			frame: func(t *testing.T) []byte {
				return frame(t, config.TypeShapeAdd, config.ShapeData{Type: config.ShapeArrow, X2: 1, Color: "#000", LineWidth: 1})
			},
			want: []string{"shape:arrow"},
		},
		{name: "clear", frame: func(t *testing.T) []byte { return []byte(`{"type":"CLEAR"}`) }, want: []string{"clear"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, raster, _, _ := newRouter()
			r.Dispatch(tt.frame(t))
			assert.Equal(t, tt.want, raster.calls)
		})
	}
}

func TestRouter_UnknownTypeIsIgnored(t *testing.T) {
	r, raster, log, dec := newRouter()
	log.Append(config.ChatMessage{User: "a", Text: "b"})

	assert.NotPanics(t, func() {
		r.Dispatch([]byte(`{"type":"CURSOR","data":{"x":1}}`))
		r.Dispatch([]byte(`{"type":"draw","data":{}}`))
	})

	assert.Empty(t, raster.calls)
	assert.Equal(t, 1, log.Len())
	assert.Empty(t, dec.pending)
	assert.False(t, r.Loading())
}

func TestRouter_MalformedFramesDoNotStopProcessing(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	raster := &mockRaster{}
	r := New(raster, &chat.Log{}, &fakeDecoder{}, zap.New(core))

	r.Dispatch([]byte("not json"))
	r.Dispatch([]byte(`{"type":"DRAW","data":"oops"}`))
	r.Dispatch([]byte(`{"type":"DRAW"}`))
	r.Dispatch(drawFrame(t, "#222222"))

	assert.Equal(t, []string{"draw:#222222"}, raster.calls)
	assert.Equal(t, 1, logs.FilterMessage("drop malformed frame").Len())
	assert.Equal(t, 2, logs.FilterMessage("drop invalid frame").Len())
}

func TestRouter_RendererErrorsAreContained(t *testing.T) {
	raster := &mockRaster{err: canvas.ErrNotReady}
	r := New(raster, &chat.Log{}, &fakeDecoder{}, nil)

	r.Dispatch(drawFrame(t, "#333333"))
	raster.err = errors.New("boom")
	r.Dispatch(drawFrame(t, "#444444"))

	assert.Len(t, raster.calls, 2)
}

func TestRouter_Chat(t *testing.T) {
	r, _, log, _ := newRouter()

	r.Dispatch(frame(t, config.TypeChat, config.ChatMessage{User: "early", Text: "dropped by history"}))
	r.Dispatch(frame(t, config.TypeChatHistory, []config.ChatMessage{{User: "Alice", Text: "hi"}, {User: "Bob", Text: "hello"}}))
	r.Dispatch(frame(t, config.TypeChat, config.ChatMessage{User: "Carol", Text: "hey"}))

	assert.Equal(t, []config.ChatMessage{
		{User: "Alice", Text: "hi"},
		{User: "Bob", Text: "hello"},
		{User: "Carol", Text: "hey"},
	}, log.Messages())
}

func TestRouter_SnapshotGatesRasterFrames(t *testing.T) {
	r, raster, log, dec := newRouter()

	r.Dispatch(frame(t, config.TypeSnapshot, "data:image/png;base64,AAAA"))
	require.True(t, r.Loading())
	require.Len(t, dec.pending, 1)
	assert.Equal(t, "data:image/png;base64,AAAA", dec.pending[0].payload)

	r.Dispatch(drawFrame(t, "#000001"))
	r.Dispatch(drawFrame(t, "#000002"))
	r.Dispatch(frame(t, config.TypeChat, config.ChatMessage{User: "Alice", Text: "not gated"}))
	r.Dispatch(drawFrame(t, "#000003"))

	assert.Empty(t, raster.calls, "nothing drawn before the snapshot lands")
	assert.Equal(t, 3, r.Pending())
	assert.Equal(t, 1, log.Len())

	dec.complete(t, 0, 8)

	assert.Equal(t, []string{"snapshot:8", "draw:#000001", "draw:#000002", "draw:#000003"}, raster.calls)
	assert.False(t, r.Loading())
	assert.Zero(t, r.Pending())

	r.Dispatch(drawFrame(t, "#000004"))
	assert.Equal(t, "draw:#000004", raster.calls[len(raster.calls)-1])
}

func TestRouter_ClearIsQueuedInOrder(t *testing.T) {
	r, raster, _, dec := newRouter()

	r.Dispatch(frame(t, config.TypeSnapshot, "x"))
	r.Dispatch(drawFrame(t, "#000001"))
	r.Dispatch([]byte(`{"type":"CLEAR"}`))
	r.Dispatch(drawFrame(t, "#000002"))
	dec.complete(t, 0, 1)

	assert.Equal(t, []string{"snapshot:1", "draw:#000001", "clear", "draw:#000002"}, raster.calls)
}

func TestRouter_FailedSnapshotStillReplays(t *testing.T) {
	r, raster, _, dec := newRouter()

	r.Dispatch(frame(t, config.TypeSnapshot, "x"))
	r.Dispatch(drawFrame(t, "#000001"))
	dec.pending[0].done(nil, canvas.ErrBadPayload)

	assert.Equal(t, []string{"draw:#000001"}, raster.calls)
	assert.False(t, r.Loading())
}

func TestRouter_NewerSnapshotSupersedes(t *testing.T) {
	r, raster, _, dec := newRouter()

	r.Dispatch(frame(t, config.TypeSnapshot, "first"))
	r.Dispatch(drawFrame(t, "#000001"))
	r.Dispatch(frame(t, config.TypeSnapshot, "second"))
	r.Dispatch(drawFrame(t, "#000002"))

	dec.complete(t, 0, 1)
	assert.Empty(t, raster.calls, "stale decode ignored")
	assert.True(t, r.Loading())

	dec.complete(t, 1, 2)
	assert.Equal(t, []string{"snapshot:2", "draw:#000001", "draw:#000002"}, raster.calls)
}

func TestRouter_SnapshotThenStrokesOnRealCanvas(t *testing.T) {
	c := canvas.New()
	require.True(t, c.Resize(100, 100))

	loop := make(chan func(), 1)
	loader := canvas.NewSnapshotLoader(func(fn func()) bool { loop <- fn; return true }, nil)
	r := New(c, &chat.Log{}, loader, nil)

	snap := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for i := 3; i < len(snap.Pix); i += 4 {
		snap.Pix[i-1] = 255 // blue
		snap.Pix[i] = 255
	}
	url := encodeDataURL(t, snap)

	r.Dispatch(frame(t, config.TypeSnapshot, url))
	for i, y := range []float64{0.2, 0.5, 0.8} {
		r.Dispatch(frame(t, config.TypeDraw, config.DrawData{
			Points:    []config.Point{{X: 0.1, Y: y}, {X: 0.9, Y: y}},
			Color:     []string{"#ff0000", "#00ff00", "#ffff00"}[i],
			LineWidth: 4,
		}))
	}
	require.Equal(t, 3, r.Pending())

	(<-loop)()

	img := c.Image()
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(100, 40))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, img.RGBAAt(100, 100))
	assert.Equal(t, color.RGBA{R: 255, G: 255, A: 255}, img.RGBAAt(100, 160))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(100, 130), "snapshot kept between strokes")
}

func TestRouter_OffCanvasFramesDropped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := canvas.New()
	require.True(t, c.Resize(100, 100))
	r := New(c, &chat.Log{}, &fakeDecoder{}, zap.New(core))

	r.Dispatch(frame(t, config.TypeDraw, config.DrawData{
		Points:    []config.Point{{X: 0.1, Y: 0.5}, {X: 1e12, Y: 0.5}},
		Color:     "#000000",
		LineWidth: 4,
	}))
	r.Dispatch(frame(t, config.TypeShapeAdd, config.ShapeData{
		Type: config.ShapeLine, X1: -5, Y1: 0.5, X2: 7, Y2: 0.5, Color: "#000000", LineWidth: 4,
	}))

	assert.Equal(t, 2, logs.FilterMessage("drop invalid frame").Len())
	assert.Equal(t, uint8(0), c.Image().RGBAAt(100, 100).A)
}

func TestRouter_SnapshotBeforeFirstResize(t *testing.T) {
	c := canvas.New()

	loop := make(chan func(), 1)
	loader := canvas.NewSnapshotLoader(func(fn func()) bool { loop <- fn; return true }, nil)
	r := New(c, &chat.Log{}, loader, nil)

	snap := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for i := 3; i < len(snap.Pix); i += 4 {
		snap.Pix[i-1] = 255
		snap.Pix[i] = 255
	}

	r.Dispatch(frame(t, config.TypeSnapshot, encodeDataURL(t, snap)))
	(<-loop)()
	assert.False(t, r.Loading())
	assert.Nil(t, c.Image())

	require.True(t, c.Resize(60, 60))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, c.Image().RGBAAt(60, 60))
}

func encodeDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	c := canvas.NewSurface()
	require.True(t, c.Resize(float64(img.Bounds().Dx())/canvas.Scale, float64(img.Bounds().Dy())/canvas.Scale))
	require.NoError(t, c.DrawSnapshot(img))
	url, err := c.DataURL()
	require.NoError(t, err)
	return url
}


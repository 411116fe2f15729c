package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// Scale is the backing-pixel density over the logical size.
const Scale = 2

var (
	ErrNotReady   = errors.New("canvas not ready")
	ErrBadPayload = errors.New("bad payload")
)

// Surface owns the raster. Renderers address it in logical pixels; the
// backing image is Scale times larger in each dimension.
//
// Resize discards the raster content. There is no operation log to replay.
type Surface struct {
	scale  float64
	width  float64
	height float64

	img *image.RGBA
	dc  *gg.Context

	// snapshot that arrived before the first successful Resize
	deferred image.Image
}

func NewSurface() *Surface {
	return &Surface{scale: Scale}
}

// Resize re-creates the backing raster for a logical size of w×h. It
// returns false, leaving the surface untouched, when the size is empty.
func (s *Surface) Resize(w, h float64) bool {
	if w <= 0 || h <= 0 || math.IsNaN(w) || math.IsNaN(h) {
		return false
	}

	bw := int(math.Round(w * s.scale))
	bh := int(math.Round(h * s.scale))
	if bw <= 0 || bh <= 0 {
		return false
	}

	s.img = image.NewRGBA(image.Rect(0, 0, bw, bh))
	s.dc = gg.NewContextForRGBA(s.img)
	s.dc.SetLineCapRound()
	s.dc.SetLineJoinRound()
	s.width, s.height = w, h

	if s.deferred != nil {
		s.blit(s.deferred)
		s.deferred = nil
	}
	return true
}

func (s *Surface) Ready() bool { return s.img != nil }

func (s *Surface) LogicalSize() (float64, float64) { return s.width, s.height }

func (s *Surface) Scale() float64 { return s.scale }

// Image returns the backing raster. Callers off the owning loop must use Clone.
func (s *Surface) Image() *image.RGBA { return s.img }

func (s *Surface) Clone() *image.RGBA {
	if s.img == nil {
		return nil
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Surface) Clear() {
	if s.img == nil {
		s.deferred = nil
		return
	}
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// DrawSnapshot replaces the raster with img scaled to the backing size.
// Before the first successful Resize it keeps img for that Resize to draw
// and returns ErrNotReady.
func (s *Surface) DrawSnapshot(img image.Image) error {
	if s.img == nil {
		s.deferred = img
		return ErrNotReady
	}
	s.blit(img)
	return nil
}

func (s *Surface) blit(img image.Image) {
	s.Clear()
	xdraw.ApproxBiLinear.Scale(s.img, s.img.Bounds(), img, img.Bounds(), draw.Over, nil)
}

func (s *Surface) PNG() ([]byte, error) {
	if s.img == nil {
		return nil, ErrNotReady
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL encodes the raster as a data:image/png URL.
func (s *Surface) DataURL() (string, error) {
	b, err := s.PNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}

// device maps a logical pixel position to backing pixels.
func (s *Surface) device(x, y float64) (float64, float64) {
	return x * s.scale, y * s.scale
}

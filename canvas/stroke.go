package canvas

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/Tk21111/whiteboard_sync/config"
)

// StrokeEngine renders freehand segments onto a Surface.
type StrokeEngine struct {
	s *Surface
}

func NewStrokeEngine(s *Surface) *StrokeEngine {
	return &StrokeEngine{s: s}
}

// DrawSegment strokes d over the existing raster.
func (e *StrokeEngine) DrawSegment(d config.DrawData) error {
	if err := checkSegment(d.Points, d.LineWidth); err != nil {
		return err
	}
	col, err := ParseColor(d.Color)
	if err != nil {
		return err
	}
	if !e.s.Ready() {
		return ErrNotReady
	}

	dc := e.s.dc
	dc.SetColor(col)
	dc.SetLineWidth(d.LineWidth * e.s.scale)
	e.trace(dc, d.Points, 0, 0)
	dc.Stroke()

	return nil
}

// EraseSegment punches the stroke of d out of the raster (destination-out).
func (e *StrokeEngine) EraseSegment(d config.EraseData) error {
	if err := checkSegment(d.Points, d.LineWidth); err != nil {
		return err
	}
	if !e.s.Ready() {
		return ErrNotReady
	}

	width := d.LineWidth * e.s.scale
	r := e.bounds(d.Points, width).Intersect(e.s.img.Bounds())
	if r.Empty() {
		return nil
	}

	mask := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	mc := gg.NewContextForRGBA(mask)
	mc.SetLineCapRound()
	mc.SetLineJoinRound()
	mc.SetColor(color.White)
	mc.SetLineWidth(width)
	e.trace(mc, d.Points, float64(r.Min.X), float64(r.Min.Y))
	mc.Stroke()

	punch(e.s.img, r, mask)
	return nil
}

// trace builds the polyline path in backing pixels, shifted by (ox, oy).
func (e *StrokeEngine) trace(dc *gg.Context, pts []config.Point, ox, oy float64) {
	w, h := e.s.LogicalSize()
	for i, p := range pts {
		x, y := e.s.device(ToPixel(p, w, h))
		if i == 0 {
			dc.MoveTo(x-ox, y-oy)
			continue
		}
		dc.LineTo(x-ox, y-oy)
	}
}

// bounds is the backing-pixel rectangle a stroke of width can touch.
func (e *StrokeEngine) bounds(pts []config.Point, width float64) image.Rectangle {
	w, h := e.s.LogicalSize()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		x, y := e.s.device(ToPixel(p, w, h))
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	pad := width/2 + 2
	return image.Rect(
		int(math.Floor(minX-pad)), int(math.Floor(minY-pad)),
		int(math.Ceil(maxX+pad)), int(math.Ceil(maxY+pad)),
	)
}

// punch scales every pixel of dst inside r by the inverse of the mask alpha.
// mask is aligned with r.Min at its origin.
func punch(dst *image.RGBA, r image.Rectangle, mask *image.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		di := dst.PixOffset(r.Min.X, y)
		mi := mask.PixOffset(0, y-r.Min.Y)
		for x := r.Min.X; x < r.Max.X; x++ {
			m := uint32(mask.Pix[mi+3])
			if m != 0 {
				keep := 255 - m
				for c := 0; c < 4; c++ {
					dst.Pix[di+c] = uint8((uint32(dst.Pix[di+c])*keep + 127) / 255)
				}
			}
			di += 4
			mi += 4
		}
	}
}

func checkSegment(pts []config.Point, lineWidth float64) error {
	if len(pts) < 2 {
		return fmt.Errorf("%w: segment needs 2 points, got %d", ErrBadPayload, len(pts))
	}
	if err := checkWidth(lineWidth); err != nil {
		return err
	}
	return CheckUnit(pts...)
}

package canvas

import (
	"fmt"
	"math"

	"github.com/Tk21111/whiteboard_sync/config"
)

// arrowSpread is the angle between the shaft and each arrowhead wing.
const arrowSpread = math.Pi / 7

// ShapeRenderer draws committed shapes onto a Surface.
type ShapeRenderer struct {
	s *Surface
}

func NewShapeRenderer(s *Surface) *ShapeRenderer {
	return &ShapeRenderer{s: s}
}

func (r *ShapeRenderer) RenderShape(d config.ShapeData) error {
	if err := checkWidth(d.LineWidth); err != nil {
		return err
	}
	if err := CheckUnit(config.Point{X: d.X1, Y: d.Y1}, config.Point{X: d.X2, Y: d.Y2}); err != nil {
		return err
	}
	col, err := ParseColor(d.Color)
	if err != nil {
		return err
	}
	switch d.Type {
	case config.ShapeRect, config.ShapeLine, config.ShapeArrow:
	default:
		return fmt.Errorf("%w: shape type %q", ErrBadPayload, d.Type)
	}
	if !r.s.Ready() {
		return ErrNotReady
	}

	w, h := r.s.LogicalSize()
	x1, y1 := ToPixel(config.Point{X: d.X1, Y: d.Y1}, w, h)
	x2, y2 := ToPixel(config.Point{X: d.X2, Y: d.Y2}, w, h)

	dc := r.s.dc
	dc.SetColor(col)
	dc.SetLineWidth(d.LineWidth * r.s.scale)

	move := func(x, y float64) { dc.MoveTo(r.s.device(x, y)) }
	line := func(x, y float64) { dc.LineTo(r.s.device(x, y)) }

	switch d.Type {
	case config.ShapeRect:
		move(x1, y1)
		line(x2, y1)
		line(x2, y2)
		line(x1, y2)
		dc.ClosePath()
	case config.ShapeLine:
		move(x1, y1)
		line(x2, y2)
	case config.ShapeArrow:
		move(x1, y1)
		line(x2, y2)
		left, right := ArrowHead(x1, y1, x2, y2, d.LineWidth)
		move(x2, y2)
		line(left[0], left[1])
		move(x2, y2)
		line(right[0], right[1])
	}
	dc.Stroke()

	return nil
}

// ArrowHead returns the outer end points of the two wings of an arrow whose
// tip is (x2, y2). Each wing is 5×lineWidth long and leaves the tip at
// π/7 either side of the shaft.
func ArrowHead(x1, y1, x2, y2, lineWidth float64) (left, right [2]float64) {
	angle := math.Atan2(y2-y1, x2-x1)
	radius := 10 * lineWidth / 2

	left = [2]float64{
		x2 - radius*math.Cos(angle-arrowSpread),
		y2 - radius*math.Sin(angle-arrowSpread),
	}
	right = [2]float64{
		x2 - radius*math.Cos(angle+arrowSpread),
		y2 - radius*math.Sin(angle+arrowSpread),
	}
	return left, right
}

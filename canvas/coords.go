package canvas

import (
	"fmt"
	"math"

	"github.com/Tk21111/whiteboard_sync/config"
)

// unitSlack is how far outside [0,1] a received coordinate may fall.
const unitSlack = 0.01

// Box is the on-screen rectangle of the canvas element.
type Box struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// ToUnit maps a client pointer position into unit coordinates relative to
// box. ok is false while the box has no area. Results are clamped to [0,1].
func ToUnit(clientX, clientY float64, box Box) (p config.Point, ok bool) {
	if box.Width <= 0 || box.Height <= 0 {
		return config.Point{}, false
	}

	return config.Point{
		X: clamp01((clientX - box.Left) / box.Width),
		Y: clamp01((clientY - box.Top) / box.Height),
	}, true
}

// ToPixel maps p onto a surface of logical size w×h.
func ToPixel(p config.Point, w, h float64) (float64, float64) {
	return p.X * w, p.Y * h
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// CheckUnit rejects points that are not finite or lie off the canvas.
func CheckUnit(pts ...config.Point) error {
	for _, p := range pts {
		if !inUnit(p.X) || !inUnit(p.Y) {
			return fmt.Errorf("%w: point (%v, %v) off canvas", ErrBadPayload, p.X, p.Y)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= -unitSlack && v <= 1+unitSlack
}

func checkWidth(lineWidth float64) error {
	if !(lineWidth > 0) || math.IsInf(lineWidth, 1) {
		return fmt.Errorf("%w: lineWidth %v", ErrBadPayload, lineWidth)
	}
	return nil
}

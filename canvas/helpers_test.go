package canvas

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSurface(t *testing.T, w, h float64) *Surface {
	t.Helper()
	s := NewSurface()
	require.True(t, s.Resize(w, h))
	return s
}

// at reads the backing pixel under a unit coordinate.
func at(s *Surface, ux, uy float64) color.RGBA {
	b := s.Image().Bounds()
	x := int(ux * float64(b.Dx()))
	y := int(uy * float64(b.Dy()))
	return s.Image().RGBAAt(x, y)
}

func requireInk(t *testing.T, c color.RGBA, msgAndArgs ...any) {
	t.Helper()
	require.GreaterOrEqual(t, c.A, uint8(250), msgAndArgs...)
}

func requireBlank(t *testing.T, c color.RGBA, msgAndArgs ...any) {
	t.Helper()
	require.Equal(t, uint8(0), c.A, msgAndArgs...)
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

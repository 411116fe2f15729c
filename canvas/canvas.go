// Package canvas rasterizes whiteboard events.
//
// Everything here is addressed in logical pixels or unit coordinates; the
// Surface maps to its 2x backing raster internally. None of the types are
// safe for concurrent use, they belong to one session loop.
package canvas

// Canvas bundles a surface with the renderers that draw on it.
type Canvas struct {
	*Surface
	*StrokeEngine
	*ShapeRenderer
}

func New() *Canvas {
	s := NewSurface()
	return &Canvas{
		Surface:       s,
		StrokeEngine:  NewStrokeEngine(s),
		ShapeRenderer: NewShapeRenderer(s),
	}
}

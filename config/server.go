package config

// Envelope types.
const (
	TypeSnapshot    = "SNAPSHOT"
	TypeChatHistory = "CHAT_HISTORY"
	TypeChat        = "CHAT"
	TypeDraw        = "DRAW"
	TypeShapeAdd    = "SHAPE_ADD"
	TypeErase       = "ERASE"
	TypeClear       = "CLEAR"
)

// Shape kinds carried in ShapeData.Type.
const (
	ShapeRect  = "rect"
	ShapeLine  = "line"
	ShapeArrow = "arrow"
)

// IsRasterType reports whether frames of type t mutate the raster.
func IsRasterType(t string) bool {
	switch t {
	case TypeDraw, TypeShapeAdd, TypeErase, TypeClear:
		return true
	}
	return false
}

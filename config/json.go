package config

import "encoding/json"

// Envelope is the frame exchanged over the room socket.
// Data is absent for CLEAR.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Point is a unit coordinate relative to the logical canvas size.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DrawData struct {
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type EraseData struct {
	Points    []Point `json:"points"`
	LineWidth float64 `json:"lineWidth"`
}

type ShapeData struct {
	Type      string  `json:"type"` // rect, line, arrow
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	X2        float64 `json:"x2"`
	Y2        float64 `json:"y2"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// SaveRequest is the body of POST /save/<roomId>.
type SaveRequest struct {
	ImageData string `json:"image_data"`
}

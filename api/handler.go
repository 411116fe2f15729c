package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/db"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
)

// maxSnapshotBody bounds a save request; a data URL of a large 2x canvas is
// a few MB.
const maxSnapshotBody = 32 << 20

type messageResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SaveHandler serves POST /save/{roomId}. The stored snapshot is replaced.
func SaveHandler(store db.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomId")
		log := logx.From(logx.WithRoom(r.Context(), roomID))

		if r.Method != http.MethodPost {
			http.Error(w, "Use POST", http.StatusMethodNotAllowed)
			return
		}
		if roomID == "" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Detail: "roomId required"})
			return
		}

		var req config.SaveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBody)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Detail: "invalid json"})
			return
		}
		if req.ImageData == "" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Detail: "image_data required"})
			return
		}

		if err := store.SaveSnapshot(r.Context(), roomID, req.ImageData); err != nil {
			log.Error("save snapshot", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, messageResponse{Detail: "database error"})
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: "Whiteboard state saved successfully."})
	}
}

// SnapshotHandler serves GET /snapshot/{roomId}: the stored data URL, or
// 404 when the room was never saved.
func SnapshotHandler(store db.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomId")

		data, ok, err := store.Snapshot(r.Context(), roomID)
		if err != nil {
			logx.From(logx.WithRoom(r.Context(), roomID)).Error("load snapshot", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, messageResponse{Detail: "database error"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, messageResponse{Detail: "no snapshot"})
			return
		}

		writeJSON(w, http.StatusOK, config.SaveRequest{ImageData: data})
	}
}

type eventResponse struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Frame     json.RawMessage `json:"frame"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventsHandler serves GET /events/{roomId}: the drawing frames relayed in
// the room, oldest first. CLEAR frames are part of the log, so replaying it
// in order rebuilds the raster since the room was created.
func EventsHandler(store db.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomId")

		events, err := store.Events(r.Context(), roomID)
		if err != nil {
			logx.From(logx.WithRoom(r.Context(), roomID)).Error("load events", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, messageResponse{Detail: "database error"})
			return
		}

		out := make([]eventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, eventResponse{
				ID:        e.ID,
				Type:      e.Type,
				Frame:     json.RawMessage(e.Payload),
				CreatedAt: time.UnixMilli(e.CreatedAt).UTC(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tk21111/whiteboard_sync/db"
)

type mockStore struct {
	data map[string]string
	err  error
}

func (m *mockStore) SaveSnapshot(ctx context.Context, roomID, imageData string) error {
	if m.err != nil {
		return m.err
	}
	m.data[roomID] = imageData
	return nil
}

func (m *mockStore) Snapshot(ctx context.Context, roomID string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[roomID]
	return v, ok, nil
}

func newMux(store *mockStore) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /save/{roomId}", SaveHandler(store))
	mux.Handle("GET /snapshot/{roomId}", SnapshotHandler(store))
	return mux
}

func TestSaveHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		storeErr error
		wantCode int
		wantBody string
		stored   bool
	}{
		{name: "ok", body: `{"image_data":"data:image/png;base64,AAAA"}`, wantCode: http.StatusOK, wantBody: "saved successfully", stored: true},
		{name: "bad json", body: `{`, wantCode: http.StatusBadRequest},
		{name: "empty data", body: `{"image_data":""}`, wantCode: http.StatusBadRequest},
		{name: "store error", body: `{"image_data":"x"}`, storeErr: errors.New("disk"), wantCode: http.StatusInternalServerError, wantBody: "database error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{data: map[string]string{}, err: tt.storeErr}

			rec := httptest.NewRecorder()
			newMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/save/room-1", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			_, ok := store.data["room-1"]
			assert.Equal(t, tt.stored, ok)
		})
	}
}

func TestSnapshotHandler(t *testing.T) {
	store := &mockStore{data: map[string]string{"known": "data:image/png;base64,AAAA"}}
	mux := newMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot/known", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"image_data":"data:image/png;base64,AAAA"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.err = errors.New("down")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot/known", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type mockEvents struct {
	events []db.Event
	err    error
}

func (m *mockEvents) Events(ctx context.Context, roomID string) ([]db.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []db.Event
	for _, e := range m.events {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestEventsHandler(t *testing.T) {
	store := &mockEvents{events: []db.Event{
		{ID: 1, RoomID: "r", Type: "DRAW", Payload: []byte(`{"type":"DRAW","data":{}}`), CreatedAt: 0},
		{ID: 2, RoomID: "other", Type: "CLEAR", Payload: []byte(`{"type":"CLEAR"}`)},
		{ID: 3, RoomID: "r", Type: "CLEAR", Payload: []byte(`{"type":"CLEAR"}`), CreatedAt: 1000},
	}}
	mux := http.NewServeMux()
	mux.Handle("GET /events/{roomId}", EventsHandler(store))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/r", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":1,"type":"DRAW","frame":{"type":"DRAW","data":{}},"created_at":"1970-01-01T00:00:00Z"},
		{"id":3,"type":"CLEAR","frame":{"type":"CLEAR"},"created_at":"1970-01-01T00:00:01Z"}
	]`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/empty", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	store.err = errors.New("down")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/r", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

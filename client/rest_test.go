package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tk21111/whiteboard_sync/config"
)

func TestREST_Save(t *testing.T) {
	var got config.SaveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/save/room-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	err := NewREST(srv.URL+"/", nil, nil).Save(context.Background(), "room-1", "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", got.ImageData)
}

func TestREST_SaveFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewREST(srv.URL, nil, nil).Save(context.Background(), "r", "x")
		require.ErrorIs(t, err, ErrSaveFailed)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()

		err := NewREST(base, nil, nil).Save(context.Background(), "r", "x")
		require.ErrorIs(t, err, ErrSaveFailed)
	})
}

func TestREST_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snapshot/known":
			_ = json.NewEncoder(w).Encode(config.SaveRequest{ImageData: "data:image/png;base64,BBBB"})
		case "/snapshot/broken":
			http.Error(w, "no", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rest := NewREST(srv.URL, nil, nil)

	data, ok, err := rest.Snapshot(context.Background(), "known")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,BBBB", data)

	_, ok, err = rest.Snapshot(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = rest.Snapshot(context.Background(), "broken")
	assert.Error(t, err)
}

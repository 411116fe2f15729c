package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
)

var ErrSaveFailed = errors.New("save failed")

// REST talks to the HTTP side of the backend.
type REST struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewREST(base string, hc *http.Client, log *zap.Logger) *REST {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &REST{
		base: strings.TrimRight(base, "/"),
		http: hc,
		log:  logx.Or(log),
	}
}

// Save uploads a PNG data URL as the room snapshot. Any non-2xx status is
// ErrSaveFailed; the response body is not inspected.
func (r *REST) Save(ctx context.Context, roomID, dataURL string) error {
	body, err := json.Marshal(config.SaveRequest{ImageData: dataURL})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("save", roomID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrSaveFailed, res.StatusCode)
	}

	r.log.Info("snapshot saved", zap.String("room", roomID), zap.String("size", humanize.Bytes(uint64(len(dataURL)))))
	return nil
}

// Snapshot fetches the stored room image. ok is false when the room has none.
func (r *REST) Snapshot(ctx context.Context, roomID string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint("snapshot", roomID), nil)
	if err != nil {
		return "", false, err
	}

	res, err := r.http.Do(req)
	if err != nil {
		return "", false, err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return "", false, nil
	case res.StatusCode < 200 || res.StatusCode > 299:
		return "", false, fmt.Errorf("snapshot %s: status %d", roomID, res.StatusCode)
	}

	var body config.SaveRequest
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("snapshot %s: %w", roomID, err)
	}
	if body.ImageData == "" {
		return "", false, nil
	}
	return body.ImageData, true, nil
}

func (r *REST) endpoint(kind, roomID string) string {
	return r.base + "/" + kind + "/" + url.PathEscape(roomID)
}

package canvas

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Tk21111/whiteboard_sync/internal/logx"
)

// SnapshotLoader decodes bootstrap images off the owning loop and hands the
// result back through post, so completion runs as an ordinary loop callback.
type SnapshotLoader struct {
	post func(func()) bool
	log  *zap.Logger
}

func NewSnapshotLoader(post func(func()) bool, log *zap.Logger) *SnapshotLoader {
	return &SnapshotLoader{post: post, log: logx.Or(log)}
}

// Decode starts decoding payload. done is called on the loop exactly once,
// unless the loop has already stopped.
func (l *SnapshotLoader) Decode(payload string, done func(image.Image, error)) {
	go func() {
		img, err := DecodeImage(payload)
		if err == nil {
			l.log.Debug("snapshot decoded",
				zap.String("payload", humanize.Bytes(uint64(len(payload)))),
				zap.Stringer("bounds", img.Bounds()),
			)
		}
		l.post(func() { done(img, err) })
	}()
}

// DecodeImage accepts a data:<mime>;base64,<...> URL or bare base64.
func DecodeImage(payload string) (image.Image, error) {
	raw := strings.TrimSpace(payload)
	if strings.HasPrefix(raw, "data:") {
		meta, data, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok {
			return nil, fmt.Errorf("%w: data url without payload", ErrBadPayload)
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: data url is not base64", ErrBadPayload)
		}
		raw = data
	}

	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return img, nil
}

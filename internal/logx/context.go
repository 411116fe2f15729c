package logx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// With returns ctx carrying the request logger extended by fields.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, From(ctx).With(fields...))
}

// WithRoom tags the request logger with the room the request targets.
func WithRoom(ctx context.Context, roomID string) context.Context {
	return With(ctx, zap.String("room", roomID))
}

// From returns the logger stored in ctx, falling back to L.
func From(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return L
}

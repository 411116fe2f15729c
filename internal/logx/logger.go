package logx

import (
	"go.uber.org/zap"
)

// L is the process logger. It is a no-op until Init runs.
var L = zap.NewNop()

func Init(env string) error {
	cfg := zap.NewProductionConfig()

	// Local dev readability
	if env != "prod" {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	L = logger
	return nil
}

// Or returns l, or L when l is nil.
func Or(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return L
}

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op logger until NewLogger runs,
// so packages can log from tests without setup.
var Log = zap.NewNop()

func NewLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// Named returns a child logger tagged with the component name.
func Named(component string) *zap.Logger {
	return Log.With(zap.String("component", component))
}

// Package obslog constructs the process-wide structured logger. The core
// never reaches for a package-level global: every component that logs
// takes a *zap.Logger field, defaulting to zap.NewNop() when none is
// supplied.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile logger writing JSON to stderr at the
// given level. Intended for cmd/adapipe; library code should accept a
// logger rather than calling this.
func New(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// Nop returns a logger that discards everything, used as the default
// when a caller does not supply one.
func Nop() *zap.Logger { return zap.NewNop() }

// OrNop returns l if non-nil, else a no-op logger. Every package that
// accepts an optional *zap.Logger should route it through this so call
// sites never need a nil check.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// Package logging implements ports.Logger: ConsoleLogger writes text or
// JSON entries to stderr and NopLogger discards everything.
package logging

import (
	"context"
	"sync/atomic"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// NopLogger discards all entries. It is the default for library callers
// and tests that do not care about log output.
type NopLogger struct {
	level atomic.Int32
}

// NewNopLogger creates a new no-op logger at LevelInfo.
func NewNopLogger() *NopLogger {
	l := &NopLogger{}
	l.level.Store(int32(ports.LevelInfo))
	return l
}

func (l *NopLogger) Debug(context.Context, string, ...ports.Field) {}
func (l *NopLogger) Info(context.Context, string, ...ports.Field)  {}
func (l *NopLogger) Warn(context.Context, string, ...ports.Field)  {}
func (l *NopLogger) Error(context.Context, string, ...ports.Field) {}

// With returns the receiver; there is nothing to attach fields to.
func (l *NopLogger) With(...ports.Field) ports.Logger {
	return l
}

// Level returns the configured level.
func (l *NopLogger) Level() ports.Level {
	return ports.Level(l.level.Load())
}

// SetLevel sets the configured level.
func (l *NopLogger) SetLevel(level ports.Level) {
	l.level.Store(int32(level))
}

var _ ports.Logger = (*NopLogger)(nil)

// Package logx is the ambient structured logger used across the runtime.
// It wraps github.com/luxfi/log's Logger vocabulary with a zap-backed
// production implementation and a no-op implementation for tests, so no
// package ever reaches for a bare log.Println or a package-level logger.
package logx

import (
	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// Logger is the ambient logging surface every package depends on through
// constructor injection, never a global.
type Logger interface {
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

type zapLogger struct {
	base log.Logger
	z    *zap.Logger
}

// New builds a production logger backed by zap, surfaced through the
// github.com/luxfi/log vocabulary.
func New() Logger {
	z, _ := zap.NewProduction()
	return &zapLogger{z: z}
}

// NewDevelopment builds a development logger with human-readable output.
func NewDevelopment() Logger {
	z, _ := zap.NewDevelopment()
	return &zapLogger{z: z}
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

type noOpLogger struct{}

// NewNoOp returns a logger that discards everything, for unit tests and
// library embedders that manage their own logging.
func NewNoOp() Logger { return noOpLogger{} }

func (noOpLogger) With(fields ...zap.Field) Logger          { return noOpLogger{} }
func (noOpLogger) Debug(msg string, fields ...zap.Field)    {}
func (noOpLogger) Info(msg string, fields ...zap.Field)     {}
func (noOpLogger) Warn(msg string, fields ...zap.Field)     {}
func (noOpLogger) Error(msg string, fields ...zap.Field)    {}

// Package logging wraps zap in a correlation-aware facade, the same shape
// as the teacher's engine/telemetry/logging.Logger: callers pass a
// context.Context and the wrapper stitches in the active trace id (from
// internal/telemetry/tracing) before delegating to the structured backend.
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/veris-ai/sentinel/internal/telemetry/tracing"
)

// RedactedValue is the placeholder for a credential value in log output.
// No code in this module passes credential-bearing fields to the logger, so
// nothing else references it.
const RedactedValue = "***"

// Logger is the narrow contextual logging contract used throughout the
// codebase.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, fields ...zap.Field)
	WarnCtx(ctx context.Context, msg string, fields ...zap.Field)
	ErrorCtx(ctx context.Context, msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

type correlatedLogger struct {
	base *zap.Logger
}

// New builds a production zap logger (JSON encoding, epoch-seconds timestamps)
// wrapped for trace correlation.
func New() Logger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return &correlatedLogger{base: base}
}

// NewNop returns a logger that discards everything; used in tests.
func NewNop() Logger {
	return &correlatedLogger{base: zap.NewNop()}
}

func (l *correlatedLogger) withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	if traceID := tracing.ExtractTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return fields
}

func (l *correlatedLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.withTrace(ctx, fields)...)
}

func (l *correlatedLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.withTrace(ctx, fields)...)
}

func (l *correlatedLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.withTrace(ctx, fields)...)
}

func (l *correlatedLogger) With(fields ...zap.Field) Logger {
	return &correlatedLogger{base: l.base.With(fields...)}
}

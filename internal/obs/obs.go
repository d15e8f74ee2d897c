// Package obs wires the ambient observability stack: slog setup with
// optional rotating file output, and OpenTelemetry span helpers that no
// package in this module calls. Grounded on the
// teacher's cmd/sand/main.go initSlog (JSON slog.Handler writing to an
// explicit file) and its go.opentelemetry.io/otel dependency.
package obs

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig mirrors the teacher's LogFile/LogLevel CLI fields.
type LogConfig struct {
	Path       string // empty means stderr, matching cmd/gild's container-log convention
	Level      string // debug|info|warn|error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func levelFor(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitSlog sets the process-wide default logger to a JSON handler, rotating
// through lumberjack when cfg.Path is set, or writing straight to stderr
// when it's empty (the default of every binary's --log-file flag).
func InitSlog(cfg LogConfig) {
	var writer interface {
		Write([]byte) (int, error)
	}
	if cfg.Path == "" {
		writer = os.Stderr
	} else {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    firstNonZero(cfg.MaxSizeMB, 100),
			MaxBackups: firstNonZero(cfg.MaxBackups, 5),
			MaxAge:     firstNonZero(cfg.MaxAgeDays, 28),
		}
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: levelFor(cfg.Level)})
	slog.SetDefault(slog.New(handler))
}

func firstNonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// tracerName identifies this module's spans in exported trace data.
const tracerName = "github.com/trunkctl/trunk"

// StartSpan opens a span named op, matching the teacher's span-per-RPC
// intent for otelgrpc, applied by hand here since the node-agent transport
// is JSON-over-Unix-socket rather than generated gRPC interceptors.
func StartSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, op)
}

// EndSpan records err (if any) on span and closes it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NewTracerProvider returns a basic SDK tracer provider; callers install it
// with otel.SetTracerProvider during process startup and register it as the
// global default. This package wires no exporter, and no cmd/ binary calls
// NewTracerProvider.
func NewTracerProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(opts...)
}

// Package logging builds the slog loggers used by the CLI: structured
// text or JSON output, context-carried attributes, and optional rotating
// file output.
package logging

import (
	"context"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxAttrsKey struct{}

// AppendCtx returns a context carrying the given attrs. Every record
// logged through a Logger with that context includes them.
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	if existing, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
		attrs = append(existing[:len(existing):len(existing)], attrs...)
	}
	return context.WithValue(ctx, ctxAttrsKey{}, attrs)
}

// ctxHandler decorates a handler with the attrs stashed by AppendCtx.
type ctxHandler struct {
	slog.Handler
}

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ctxHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{Handler: h.Handler.WithGroup(name)}
}

// Logger builds a context-aware slog.Logger writing to w, as text or JSON.
func Logger(w io.Writer, jsonFormat bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if jsonFormat {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(ctxHandler{Handler: h})
}

// RotatingWriter returns a size-rotated log file writer.
func RotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}

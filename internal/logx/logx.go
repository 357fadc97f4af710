// Package logx annotates pslog loggers with recording context.
package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const (
	fileKey contextKey = iota
	opKey
)

// WithFile annotates the context logger with the recording path unless the
// context already carries it.
func WithFile(ctx context.Context, path string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if path == "" {
		return log
	}
	if current, ok := ctx.Value(fileKey).(string); ok && current == path {
		return log
	}
	return log.With("file", path)
}

// WithOp annotates the logger with the operation name.
func WithOp(log pslog.Logger, op string) pslog.Logger {
	if op == "" {
		return log
	}
	return log.With("op", op)
}

// ContextWithFile stores the file marker on the context for log de-duplication.
func ContextWithFile(ctx context.Context, path string) context.Context {
	if ctx == nil || path == "" {
		return ctx
	}
	return context.WithValue(ctx, fileKey, path)
}

// ContextWithFileLogger attaches the logger and file marker to the context.
func ContextWithFileLogger(ctx context.Context, log pslog.Logger, path string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithFile(ctx, path)
}

// ContextWithOpLogger binds a logger annotated with op and path to ctx and
// returns both.
func ContextWithOpLogger(ctx context.Context, op, path string) (context.Context, pslog.Logger) {
	if current, ok := ctx.Value(opKey).(string); ok && current == op {
		log := WithFile(ctx, path)
		return ContextWithFileLogger(ctx, log, path), log
	}
	log := WithOp(WithFile(ctx, path), op)
	ctx = ContextWithFileLogger(ctx, log, path)
	return context.WithValue(ctx, opKey, op), log
}

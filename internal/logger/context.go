package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// ConnContext holds connection-scoped fields attached to every log line
// emitted while handling a session, so a single grep on conn_id reconstructs
// one client's full command history.
type ConnContext struct {
	ConnID    string
	RemoteIP  string
	Command   string
	StartTime time.Time
}

// WithConn returns a context carrying cc.
func WithConn(ctx context.Context, cc *ConnContext) context.Context {
	return context.WithValue(ctx, logContextKey, cc)
}

// ConnFromContext retrieves the ConnContext stashed by WithConn, or nil.
func ConnFromContext(ctx context.Context) *ConnContext {
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(logContextKey).(*ConnContext)
	return cc
}

// WithCommand returns a copy of cc with Command set, for per-request fields
// that must not mutate the shared per-connection struct.
func (cc *ConnContext) WithCommand(command string) *ConnContext {
	if cc == nil {
		return nil
	}
	clone := *cc
	clone.Command = command
	return &clone
}

func appendConnFields(ctx context.Context, args []any) []any {
	cc := ConnFromContext(ctx)
	if cc == nil {
		return args
	}
	extra := []any{"conn_id", cc.ConnID, "remote", cc.RemoteIP}
	if cc.Command != "" {
		extra = append(extra, "command", cc.Command)
	}
	return append(extra, args...)
}

// DebugCtx logs at debug level, prefixing connection-scoped fields from ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	get().Debug(msg, appendConnFields(ctx, args)...)
}

// InfoCtx logs at info level, prefixing connection-scoped fields from ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	get().Info(msg, appendConnFields(ctx, args)...)
}

// WarnCtx logs at warn level, prefixing connection-scoped fields from ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	get().Warn(msg, appendConnFields(ctx, args)...)
}

// ErrorCtx logs at error level, prefixing connection-scoped fields from ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	get().Error(msg, appendConnFields(ctx, args)...)
}

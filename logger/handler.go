package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

var _ slog.Handler = Handler{}

var fields = []shared.ContextKey{shared.ResIDKey, shared.SessionIDKey, shared.ShellIDKey, shared.RequestIDKey}

// Handler copies request scoped values carried by the context onto every record.
type Handler struct {
	handler slog.Handler
}

func NewHandler(handler slog.Handler) slog.Handler {
	return Handler{
		handler: handler,
	}
}

func (h Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h Handler) Handle(ctx context.Context, record slog.Record) error {
	for _, field := range fields {
		if v, ok := ctx.Value(field).(string); ok {
			record.AddAttrs(slog.String(string(field), v))
		}
	}
	return h.handler.Handle(ctx, record)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{h.handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{h.handler.WithGroup(name)}
}

// NewHandlerOptions reads MWS_LOG_LEVEL, defaulting to info.
func NewHandlerOptions() *slog.HandlerOptions {
	level, ok := os.LookupEnv("MWS_LOG_LEVEL")
	if !ok {
		return nil
	}
	var ll slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		ll = slog.LevelDebug
	case "WARN":
		ll = slog.LevelWarn
	case "ERROR":
		ll = slog.LevelError
	default:
		ll = slog.LevelInfo
	}
	return &slog.HandlerOptions{Level: ll}
}

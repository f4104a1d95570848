package logger

import (
	"context"
	"log/slog"

	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

// LoggerFromCtx returns the default logger with the resource id attached when the context has one.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if resID, ok := ctx.Value(shared.ResIDKey).(string); ok {
		return slog.With(string(shared.ResIDKey), resID)
	}
	return slog.Default()
}

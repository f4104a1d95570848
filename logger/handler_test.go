package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

func TestHandlerAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := context.WithValue(t.Context(), shared.ResIDKey, "res-42")
	ctx = context.WithValue(ctx, shared.SessionIDKey, "sess-7")
	log.InfoContext(ctx, "dbCollectionFind success", slog.String("coll", "users"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "res-42", rec["res_id"])
	require.Equal(t, "sess-7", rec["session_id"])
	require.Equal(t, "users", rec["coll"])
	require.NotContains(t, rec, "shell_id")
}

func TestHandlerOptions(t *testing.T) {
	t.Setenv("MWS_LOG_LEVEL", "debug")
	opts := NewHandlerOptions()
	require.NotNil(t, opts)
	require.Equal(t, slog.LevelDebug, opts.Level)
}

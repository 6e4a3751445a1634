package infrastructure

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = WithTraceID(ctx, "abc-123")
	assert.Equal(t, "abc-123", GetTraceID(ctx))
}

func TestEnsureTraceIDGenerates(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	require.NotEmpty(t, GetTraceID(ctx))

	// Existing trace ID is preserved
	again := EnsureTraceID(ctx)
	assert.Equal(t, GetTraceID(ctx), GetTraceID(again))
}

func TestTraceHandlerInjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	handler := &traceHandler{Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(handler)

	ctx := WithTraceID(context.Background(), "trace-xyz")
	logger.InfoContext(ctx, "resolving postcodes")

	assert.Contains(t, buf.String(), `"trace_id":"trace-xyz"`)
	assert.Contains(t, buf.String(), "resolving postcodes")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("unknown"))
}

package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"  info  ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestNew_LevelGating(t *testing.T) {
	debug := New("debug", "text")
	assert.True(t, debug.Enabled(context.Background(), slog.LevelDebug))

	errOnly := New("error", "json")
	assert.False(t, errOnly.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, errOnly.Enabled(context.Background(), slog.LevelError))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req_abc123")
	assert.Equal(t, "req_abc123", RequestID(ctx))

	ctx = WithRequestID(ctx, "req_def456")
	assert.Equal(t, "req_def456", RequestID(ctx), "later value wins")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))
}

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	custom := New("debug", "json")
	ctx := WithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
}

func TestL_TagsRequestID(t *testing.T) {
	base := New("info", "text")
	ctx := WithLogger(context.Background(), base)

	// Without a request id L hands back the stored logger untouched.
	assert.Same(t, base, L(ctx))

	// With one it derives a child, leaving the stored logger alone.
	ctx = WithRequestID(ctx, "req_789")
	tagged := L(ctx)
	require.NotNil(t, tagged)
	assert.NotSame(t, base, tagged)
	assert.Same(t, base, FromContext(ctx))
}

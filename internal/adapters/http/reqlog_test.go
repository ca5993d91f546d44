package http

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromCtx_FallsBackToDefault(t *testing.T) {
	if got := LoggerFromCtx(context.Background()); got != slog.Default() {
		t.Error("bare context must yield the default logger")
	}
}

func TestLoggerFromCtx_ReturnsRequestLogger(t *testing.T) {
	want := slog.Default().With("request_id", "req-123")
	ctx := context.WithValue(context.Background(), ctxKey("logger"), want)
	if got := LoggerFromCtx(ctx); got != want {
		t.Error("context logger must win over the default")
	}
}

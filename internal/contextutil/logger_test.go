package contextutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "r1")

	ctx := WithLogger(context.Background(), logger)
	got := LoggerFromContext(ctx)

	got.Info("hello")
	if !strings.Contains(buf.String(), "request_id=r1") {
		t.Errorf("expected request-scoped attribute in output, got %q", buf.String())
	}
}

func TestLoggerFromContextDefault(t *testing.T) {
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger when context carries none")
	}
}

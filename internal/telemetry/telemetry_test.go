package telemetry_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"
)

func TestNewNopProvider(t *testing.T) {
	p := telemetry.NewNopProvider()

	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil || p.Logger == nil {
		t.Fatalf("NewNopProvider() = %+v, want every provider set", p)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestSetup_Console(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Telemetry
	cfg.LogLevel = "warn"

	p, err := telemetry.Setup(context.Background(), cfg, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() { _ = p.Shutdown(context.Background()) }()

	p.Logger.Info("hidden")
	p.Logger.Warn("bid rejected", slog.String("team", "Kings"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "bid rejected") || !strings.Contains(out, "Kings") {
		t.Errorf("console output = %q, want the warning", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := telemetry.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogWithTrace(t *testing.T) {
	logger := slog.Default()
	if got := telemetry.LogWithTrace(context.Background(), logger); got != logger {
		t.Error("LogWithTrace() without a span should return the same logger")
	}

	p := telemetry.NewNopProvider()
	ctx, span := p.TracerProvider.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	var buf bytes.Buffer
	enriched := telemetry.LogWithTrace(ctx, slog.New(slog.NewTextHandler(&buf, nil)))
	enriched.Info("traced")
	if !strings.Contains(buf.String(), "trace_id="+span.SpanContext().TraceID().String()) {
		t.Errorf("log line = %q, want trace_id", buf.String())
	}
}

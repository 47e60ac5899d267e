package extensions

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	kiln "github.com/kiln-fn/kiln-go"
)

func TestLoggingExtensionLogsResolves(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	c, err := kiln.New(kiln.Factories{
		"svc": func(acc kiln.Accessor) (any, error) { return "instance", nil },
	}, kiln.WithExtension(NewLoggingExtension(handler)))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	val, err := c.Resolve("svc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "instance" {
		t.Errorf("expected instance, got %v", val)
	}

	out := buf.String()
	if !strings.Contains(out, "operation completed") || !strings.Contains(out, "key=svc") {
		t.Errorf("expected resolve log line, got %q", out)
	}
}

func TestLoggingExtensionLogsWarnings(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	c, _ := kiln.New(kiln.Factories{
		"tmp": kiln.Provide(func(acc kiln.Accessor) (any, error) { return 1, nil }, kiln.AsTransient()),
		"svc": func(acc kiln.Accessor) (any, error) { return acc.Get("tmp") },
	}, kiln.WithExtension(NewLoggingExtension(handler)))

	c.Resolve("svc")

	out := buf.String()
	if !strings.Contains(out, "container warning") || !strings.Contains(out, "scope_mismatch") {
		t.Errorf("expected warning log line, got %q", out)
	}
}

package logging

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("op", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorFormatting(t *testing.T) {
	base := errors.New("boom")

	err := NewOperationError("repository.record_attendance", "req-1", base)
	if got, want := err.Error(), "repository.record_attendance (request_id=req-1): boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match base")
	}

	err = NewOperationError("detector.load", "", base)
	if got, want := err.Error(), "detector.load: boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
}

func TestOperationOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewOperationError("cache.set", "req", errors.New("down")))
	if op := OperationOf(err); op != "cache.set" {
		t.Fatalf("unexpected operation %q", op)
	}
	if op := OperationOf(errors.New("plain")); op != "" {
		t.Fatalf("expected empty operation, got %q", op)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}

	logger, err = NewLogger("nonsense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected fallback to info level")
	}
}

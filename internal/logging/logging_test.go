package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLoggerRoutesNamedLoggers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	Named("storage").Debug("move_to", zap.String("owner", "0x1"))
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "storage" || entries[0].Message != "move_to" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestSetLoggerNilFallsBackToNop(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("logger must never be nil")
	}
}

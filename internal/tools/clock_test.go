package tools

import (
	"context"
	"testing"
	"time"
)

func TestClockTool(t *testing.T) {
	fixed := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	tool := clockTool(func() time.Time { return fixed })

	got, err := tool.Handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "2026-08-30 09:15:00" {
		t.Errorf("clock = %q", got)
	}
}

func TestClockTool_RegistersCleanly(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ClockTool())
	if !r.Has("get_current_time") {
		t.Error("get_current_time not registered")
	}
}

package app

import (
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		operation string
	}{
		{name: "serve", operation: "Serve"},
		{name: "one-shot command", operation: "Today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, start)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if len(op.ID) != 8 {
				t.Errorf("ID = %q, want 8 characters", op.ID)
			}
		})
	}
}

func TestOperation_IDsAreUnique(t *testing.T) {
	now := time.Now()
	a, b := NewOperation("Today", now), NewOperation("Today", now)
	if a.ID == b.ID {
		t.Errorf("two operations share ID %q", a.ID)
	}
}

func TestOperation_FailAndElapsed(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	op := NewOperation("Countdown", start)

	op.Fail()
	if op.Status != "error" {
		t.Errorf("Status = %q, want %q", op.Status, "error")
	}
	if got := op.Elapsed(start.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 1.5s", got)
	}
}

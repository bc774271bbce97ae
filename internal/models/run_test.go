package models

import (
	"testing"
	"time"
)

func TestNewRun(t *testing.T) {
	a, b := NewRun(), NewRun()
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.BestIndex != -1 {
		t.Errorf("BestIndex = %d, want -1 before a frame is chosen", a.BestIndex)
	}
	if a.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestRunDuration(t *testing.T) {
	r := NewRun()
	if r.Duration() != 0 {
		t.Error("unfinished run should report zero duration")
	}
	r.FinishedAt = r.StartedAt.Add(3 * time.Second)
	if r.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v", r.Duration())
	}
}

package logging

import "testing"

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New("not-a-level", "json")
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected a usable logger")
	}
}

func TestNewTextFormat(t *testing.T) {
	logger := New("debug", "text")
	if logger == nil {
		t.Fatal("expected a usable logger")
	}
	logger.Debug("text handler smoke test", "key", "value")
}

func TestWithReturnsChildLogger(t *testing.T) {
	parent := Default()
	child := parent.With("doctor_id", "doc-1")
	if child == nil || child.Logger == parent.Logger {
		t.Fatal("expected a distinct child logger")
	}
}

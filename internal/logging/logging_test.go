package logging

import "testing"

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	logger, err := New("not-a-level", "json")
	if err != nil {
		t.Fatalf("expected logger despite bad level, got %v", err)
	}
	if !logger.Core().Enabled(0) {
		t.Fatalf("expected info level enabled")
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level disabled")
	}
}

func TestNewConsoleFormat(t *testing.T) {
	logger, err := New("debug", "console")
	if err != nil {
		t.Fatalf("expected console logger, got %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level enabled")
	}
}

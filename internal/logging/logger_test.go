package logging

import "testing"

func TestNew(t *testing.T) {
	for _, mode := range []string{"debug", "release", "silent", ""} {
		logger, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", mode, err)
		}
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", mode)
		}
		logger.Info("test message")
		Sync(logger)
	}
}

func TestReleaseLevel(t *testing.T) {
	logger, _ := New("release")
	if logger.Core().Enabled(-1) {
		t.Error("Expected debug disabled in release mode")
	}

	dev, _ := New("debug")
	if !dev.Core().Enabled(-1) {
		t.Error("Expected debug enabled in development mode")
	}
}

package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "room.log")
	logger, err := Build(Options{Level: "debug", Format: "json", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger.Debug("room_hydrate")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"room_hydrate"`) {
		t.Fatalf("unexpected log contents: %s", b)
	}
}

func TestLevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.log")
	logger, err := Build(Options{Level: "warn", Format: "json", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "shown") {
		t.Fatalf("level filter failed: %s", b)
	}
}

func TestGlobalDefaultsToNop(t *testing.T) {
	if L() == nil {
		t.Fatalf("global logger must never be nil")
	}
}

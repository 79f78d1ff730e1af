package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestOpen_WritesJSONLines(t *testing.T) {
	root := t.TempDir()
	logger, err := Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	logger.Info("blob stored", zap.String("memory_id", "abc123"))
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(OpsLogPath)))
	if err != nil {
		t.Fatalf("read ops.log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"blob stored"`) {
		t.Errorf("ops.log missing message: %s", line)
	}
	if !strings.Contains(line, `"memory_id":"abc123"`) {
		t.Errorf("ops.log missing field: %s", line)
	}
}

func TestOpen_AppendsAcrossReopens(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 2; i++ {
		logger, err := Open(root)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		logger.Info("entry")
		logger.Sync()
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(OpsLogPath)))
	if err != nil {
		t.Fatalf("read ops.log: %v", err)
	}
	lines := strings.Count(strings.TrimSpace(string(data)), "\n") + 1
	if lines != 2 {
		t.Errorf("ops.log has %d lines, want 2", lines)
	}
}

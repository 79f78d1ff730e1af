package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureWorkspace_CreatesSubtree(t *testing.T) {
	root := t.TempDir()
	if err := EnsureWorkspace(root); err != nil {
		t.Fatalf("EnsureWorkspace failed: %v", err)
	}

	for _, dir := range allDirs {
		if _, err := os.Stat(Abs(root, dir)); err != nil {
			t.Errorf("missing directory %s: %v", dir, err)
		}
	}
	for _, file := range []string{StatePath, IndexPath, TurnSummariesPath} {
		if _, err := os.Stat(Abs(root, file)); err != nil {
			t.Errorf("missing default file %s: %v", file, err)
		}
	}
}

func TestEnsureWorkspace_Idempotent(t *testing.T) {
	root := t.TempDir()
	if err := EnsureWorkspace(root); err != nil {
		t.Fatalf("first EnsureWorkspace failed: %v", err)
	}

	read := func() map[string][]byte {
		out := make(map[string][]byte)
		for _, file := range []string{StatePath, IndexPath, TurnSummariesPath} {
			data, err := os.ReadFile(Abs(root, file))
			if err != nil {
				t.Fatalf("read %s: %v", file, err)
			}
			out[file] = data
		}
		return out
	}

	first := read()
	if err := EnsureWorkspace(root); err != nil {
		t.Fatalf("second EnsureWorkspace failed: %v", err)
	}
	second := read()

	for file, want := range first {
		if string(second[file]) != string(want) {
			t.Errorf("%s changed across bootstraps:\nfirst:  %s\nsecond: %s", file, want, second[file])
		}
	}
}

func TestEnsureWorkspace_DoesNotClobberExistingState(t *testing.T) {
	root := t.TempDir()
	if err := EnsureWorkspace(root); err != nil {
		t.Fatalf("EnsureWorkspace failed: %v", err)
	}

	fs := NewFS(root, nil)
	if err := fs.WriteJSON(StatePath, State{TaskMode: "coding", KeyArtifacts: []string{"abc"}}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	if err := EnsureWorkspace(root); err != nil {
		t.Fatalf("re-bootstrap failed: %v", err)
	}

	var s State
	if !fs.ReadJSON(StatePath, &s) {
		t.Fatal("ReadJSON failed")
	}
	if s.TaskMode != "coding" {
		t.Errorf("TaskMode = %q, want %q", s.TaskMode, "coding")
	}
}

func TestEnsureWorkspace_RelativeRoot(t *testing.T) {
	if err := EnsureWorkspace("relative/path"); err == nil {
		t.Error("EnsureWorkspace should reject a relative root")
	}
}

func TestEnsureWorkspace_ReadOnlyRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	root := t.TempDir()
	sub := filepath.Join(root, "ro")
	if err := os.MkdirAll(sub, 0o555); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := EnsureWorkspace(sub); err == nil {
		t.Error("EnsureWorkspace should fail on a read-only root")
	}
}

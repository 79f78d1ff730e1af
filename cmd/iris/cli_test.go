package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/irisworks/iris/internal/memory"
	"github.com/irisworks/iris/internal/workspace"
)

// runApp runs the CLI with captured stdout and optional piped stdin.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	if stdin != "" {
		oldStdin := os.Stdin
		stdinR, stdinW, _ := os.Pipe()
		os.Stdin = stdinR
		go func() {
			stdinW.WriteString(stdin)
			stdinW.Close()
		}()
		defer func() { os.Stdin = oldStdin }()
	}

	app := newCLIApp()
	err := app.Run(append([]string{"iris"}, args...))

	w.Close()
	os.Stdout = oldStdout
	out, _ := io.ReadAll(r)
	return string(out), err
}

func TestBootstrapCommand(t *testing.T) {
	root := t.TempDir()

	out, err := runApp(t, "", "--root", root, "bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !strings.Contains(out, `"bootstrapped": true`) {
		t.Errorf("output = %s", out)
	}

	for _, rel := range []string{".iris/memory/warm", ".iris/runtime", ".iris/instructions"} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			t.Errorf("%s not created: %v", rel, err)
		}
	}
	// Instruction fragments are seeded.
	if _, err := os.Stat(filepath.Join(root, ".iris/instructions/system_core.md")); err != nil {
		t.Errorf("system_core.md not seeded: %v", err)
	}
}

func TestPutAndGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	content := "first line\nsecond line\n"

	out, err := runApp(t, content, "--root", root, "put", "--type", memory.TypeDocExtract, "--tags", "a,b")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	var ref memory.Ref
	if err := json.Unmarshal([]byte(out), &ref); err != nil {
		t.Fatalf("put output is not a ref: %v\n%s", err, out)
	}
	if ref.Type != memory.TypeDocExtract {
		t.Errorf("ref type = %q", ref.Type)
	}

	got, err := runApp(t, "", "--root", root, "get", ref.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != content {
		t.Errorf("get = %q, want %q", got, content)
	}
}

func TestGetMeta(t *testing.T) {
	root := t.TempDir()

	out, err := runApp(t, "# Title here\nbody\n", "--root", root, "put")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	var ref memory.Ref
	if err := json.Unmarshal([]byte(out), &ref); err != nil {
		t.Fatalf("unmarshal ref: %v", err)
	}

	out, err = runApp(t, "", "--root", root, "get", "--meta", ref.ID)
	if err != nil {
		t.Fatalf("get --meta: %v", err)
	}
	var meta memory.Meta
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if meta.Title != "Title here" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Compression != memory.CompressionZstd {
		t.Errorf("compression = %q", meta.Compression)
	}
}

func TestGetUnknownID(t *testing.T) {
	root := t.TempDir()

	_, err := runApp(t, "", "--root", root, "get", strings.Repeat("ef", 32))
	if err == nil {
		t.Fatal("get unknown id succeeded")
	}
	if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestSliceCommand(t *testing.T) {
	root := t.TempDir()

	out, err := runApp(t, "a\nb\nc\nd\n", "--root", root, "put")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	var ref memory.Ref
	if err := json.Unmarshal([]byte(out), &ref); err != nil {
		t.Fatalf("unmarshal ref: %v", err)
	}

	got, err := runApp(t, "", "--root", root, "slice", "--start", "2", "--end", "3", ref.ID)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if got != "b\nc\n" {
		t.Errorf("slice = %q, want %q", got, "b\nc\n")
	}
}

func TestListAndStats(t *testing.T) {
	root := t.TempDir()

	if _, err := runApp(t, "payload one", "--root", root, "put", "--type", memory.TypeToolOutput); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := runApp(t, "payload two", "--root", root, "put", "--type", memory.TypeWebScrape); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := runApp(t, "", "--root", root, "list", "--type", memory.TypeToolOutput)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listed.Count != 1 {
		t.Errorf("count = %d, want 1", listed.Count)
	}

	out, err = runApp(t, "", "--root", root, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats memory.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Blobs != 2 {
		t.Errorf("blobs = %d, want 2", stats.Blobs)
	}
}

func TestRecoverCommand(t *testing.T) {
	root := t.TempDir()

	out, err := runApp(t, "recoverable content\n", "--root", root, "put")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	var ref memory.Ref
	if err := json.Unmarshal([]byte(out), &ref); err != nil {
		t.Fatalf("unmarshal ref: %v", err)
	}

	// Simulate index loss; the blob files survive.
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(workspace.MetaDBPath))); err != nil {
		t.Fatalf("remove index: %v", err)
	}

	out, err = runApp(t, "", "--root", root, "recover")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	var res struct {
		Recovered int `json:"recovered"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("unmarshal recover: %v", err)
	}
	if res.Recovered != 1 {
		t.Errorf("recovered = %d, want 1", res.Recovered)
	}

	got, err := runApp(t, "", "--root", root, "get", ref.ID)
	if err != nil {
		t.Fatalf("get after recover: %v", err)
	}
	if got != "recoverable content\n" {
		t.Errorf("content = %q", got)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single tag", input: "foo", expected: []string{"foo"}},
		{name: "multiple tags", input: "foo,bar,baz", expected: []string{"foo", "bar", "baz"}},
		{name: "tags with spaces", input: " foo , bar ", expected: []string{"foo", "bar"}},
		{name: "empty tags filtered", input: "foo,,bar,", expected: []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTags(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d tags, got %d", len(tt.expected), len(result))
			}
			for i, tag := range result {
				if tag != tt.expected[i] {
					t.Errorf("expected tag[%d]=%q, got %q", i, tt.expected[i], tag)
				}
			}
		})
	}
}

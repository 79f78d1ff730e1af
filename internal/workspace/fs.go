package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/errors"
)

// FS is the typed wrapper over the sandbox's raw file API. All paths are
// sandbox-root-relative with forward slashes; escapes above the root are
// rejected.
type FS struct {
	root   string
	logger *zap.Logger
}

// NewFS creates a filesystem wrapper rooted at the sandbox root. A nil
// logger disables warnings.
func NewFS(root string, logger *zap.Logger) *FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FS{root: root, logger: logger}
}

// Root returns the sandbox root directory.
func (f *FS) Root() string {
	return f.root
}

// resolve maps a sandbox-relative path to an absolute one, rejecting
// traversal outside the root.
func (f *FS) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.NewInvalidRequest("path escapes sandbox root: " + rel)
	}
	return filepath.Join(f.root, clean), nil
}

// ReadText returns the file contents, or NOT_FOUND if absent.
func (f *FS) ReadText(rel string) (string, error) {
	path, err := f.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound(rel)
		}
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// WriteText writes data, creating parent directories implicitly.
func (f *FS) WriteText(rel, data string) error {
	path, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewInternal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// AppendText appends data, creating the file and parents if needed.
func (f *FS) AppendText(rel, data string) error {
	path, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewInternal(err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer file.Close()
	if _, err := file.WriteString(data); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// EnsureDir creates a directory and its parents; no-op if present.
func (f *FS) EnsureDir(rel string) error {
	path, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Exists reports whether the path exists.
func (f *FS) Exists(rel string) bool {
	path, err := f.resolve(rel)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

// ListDir returns the entry names of a directory, sorted. Missing
// directories yield an empty list.
func (f *FS) ListDir(rel string) ([]string, error) {
	path, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// ReadJSON decodes a JSON file into v. On a missing or malformed file it
// leaves v untouched, logs a warning, and reports false; readers fall back
// to their default.
func (f *FS) ReadJSON(rel string, v any) bool {
	data, err := f.ReadText(rel)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			f.logger.Warn("json read failed", zap.String("path", rel), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		f.logger.Warn("malformed json, using default", zap.String("path", rel), zap.Error(err))
		return false
	}
	return true
}

// WriteJSON encodes v and writes it atomically: write to <path>.tmp, then
// rename over the destination.
func (f *FS) WriteJSON(rel string, v any) error {
	path, err := f.resolve(rel)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewInternal(err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.NewInternal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.NewInternal(err)
	}
	return nil
}

// Package instructions seeds and serves the pre-baked instruction
// fragments under .iris/instructions/. Fragments are written once per
// sandbox and read once per session; per-turn access is a map lookup.
package instructions

import (
	"strings"

	"github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/workspace"
)

// Seed writes the default fragment files if absent. Idempotent: existing
// fragments are never overwritten, so a sandbox owner may tune them.
func Seed(fs *workspace.FS) error {
	for _, key := range Keys() {
		path := fragmentPath(key)
		if fs.Exists(path) {
			continue
		}
		if err := fs.WriteText(path, defaultFragments[key]+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Cache is the read-only in-memory fragment mapping.
type Cache struct {
	fragments map[string]string
}

// LoadAll reads every fragment from disk into a cache. Call once per
// session, after Seed.
func LoadAll(fs *workspace.FS) (*Cache, error) {
	fragments := make(map[string]string, len(Keys()))
	for _, key := range Keys() {
		text, err := fs.ReadText(fragmentPath(key))
		if err != nil {
			return nil, err
		}
		fragments[key] = strings.TrimRight(text, "\n")
	}
	return &Cache{fragments: fragments}, nil
}

// Get returns one fragment by key.
func (c *Cache) Get(key string) (string, error) {
	text, ok := c.fragments[key]
	if !ok {
		return "", errors.NewNotFound("instruction fragment " + key)
	}
	return text, nil
}

// GetCoreInstructions returns the mandatory fragments concatenated in
// their fixed order, separated by blank lines. Given the same fragment
// files, the output is byte-identical across runs.
func (c *Cache) GetCoreInstructions() string {
	parts := make([]string, 0, len(coreOrder))
	for _, key := range coreOrder {
		parts = append(parts, c.fragments[key])
	}
	return strings.Join(parts, "\n\n")
}

func fragmentPath(key string) string {
	return workspace.InstructionsDir + "/" + key + ".md"
}

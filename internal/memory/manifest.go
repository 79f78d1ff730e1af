package memory

import (
	"github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/workspace"
)

// Manifest is a named logical grouping of memory ids, stored under
// .iris/memory/manifests/<name>.json. Purely advisory: deleting a
// manifest never touches blobs.
type Manifest struct {
	Name      string   `json:"name"`
	MemoryIDs []string `json:"memory_ids"`
}

// WriteManifest persists a named grouping. Every id must resolve to an
// index row.
func (s *Store) WriteManifest(fs *workspace.FS, name string, memoryIDs []string) error {
	if name == "" {
		return errors.NewInvalidRequest("manifest name is required")
	}
	for _, id := range memoryIDs {
		if _, err := s.GetMetadata(id); err != nil {
			return err
		}
	}
	return fs.WriteJSON(manifestPath(name), Manifest{Name: name, MemoryIDs: memoryIDs})
}

// ReadManifest loads a named grouping, or NOT_FOUND.
func ReadManifest(fs *workspace.FS, name string) (*Manifest, error) {
	var m Manifest
	if !fs.ReadJSON(manifestPath(name), &m) {
		return nil, errors.NewNotFound("manifest " + name)
	}
	return &m, nil
}

func manifestPath(name string) string {
	return workspace.ManifestsDir + "/" + name + ".json"
}

package workspace

import (
	"path/filepath"

	"github.com/irisworks/iris/internal/errors"
)

// EnsureWorkspace creates the full .iris/ subtree under root and seeds the
// default runtime files. Idempotent: running it against an already
// bootstrapped sandbox changes nothing, byte for byte.
func EnsureWorkspace(root string) error {
	if !filepath.IsAbs(root) {
		return errors.NewBootstrap("sandbox root must be absolute: " + root)
	}

	fs := NewFS(root, nil)
	for _, dir := range allDirs {
		if err := fs.EnsureDir(dir); err != nil {
			return errors.NewBootstrap(err.Error())
		}
	}

	// Default runtime files are written only if absent. Their contents
	// carry no timestamps so repeated bootstraps are byte-identical.
	defaults := []struct {
		path string
		v    any
	}{
		{StatePath, State{KeyArtifacts: []string{}}},
		{IndexPath, []ArtifactMeta{}},
		{TurnSummariesPath, []TurnSummary{}},
	}
	for _, d := range defaults {
		if fs.Exists(d.path) {
			continue
		}
		if err := fs.WriteJSON(d.path, d.v); err != nil {
			return errors.NewBootstrap(err.Error())
		}
	}
	return nil
}

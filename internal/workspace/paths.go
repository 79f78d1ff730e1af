// Package workspace owns the per-sandbox .iris/ tree: bootstrap, the typed
// filesystem wrapper, and the cached runtime state files. Everything under
// .iris/ belongs to the runtime; external tools must go through this package.
package workspace

import "path/filepath"

// Fixed .iris/ subtree, relative to the sandbox root.
const (
	IrisDir         = ".iris"
	InstructionsDir = ".iris/instructions"
	ProjectDir      = ".iris/project"
	TaskDir         = ".iris/task"
	WebResultsDir   = ".iris/web_results" // deprecated inline dumps, kept for back-compat
	ArtifactsDir    = ".iris/artifacts"
	MemoryDir       = ".iris/memory"
	MemoryHotDir    = ".iris/memory/hot" // reserved; unused at rest
	MemoryWarmDir   = ".iris/memory/warm"
	ManifestsDir    = ".iris/memory/manifests"
	LogsDir         = ".iris/memory/logs"
	RuntimeDir      = ".iris/runtime"

	StatePath         = ".iris/runtime/state.json"
	IndexPath         = ".iris/runtime/index.json"
	TurnSummariesPath = ".iris/runtime/turn_summaries.json"
	LastTurnPath      = ".iris/runtime/last_turn.json"
	MetaDBPath        = ".iris/memory/meta.sqlite"
)

// allDirs lists every directory bootstrap must create.
var allDirs = []string{
	InstructionsDir,
	ProjectDir,
	TaskDir,
	WebResultsDir,
	ArtifactsDir,
	MemoryHotDir,
	MemoryWarmDir,
	ManifestsDir,
	LogsDir,
	RuntimeDir,
}

// Abs resolves a sandbox-relative path (forward slashes) against root.
func Abs(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

package workspace

import (
	"sync"
	"time"
)

// State mirrors .iris/runtime/state.json: the current task mode, phase,
// and key artifact references. Mutated only by the turn orchestrator.
type State struct {
	TaskMode     string   `json:"task_mode"`
	CurrentPhase string   `json:"current_phase"`
	KeyArtifacts []string `json:"key_artifacts"`
	LastUpdated  string   `json:"last_updated"`
}

// ArtifactMeta is one row of the .iris/runtime/index.json artifact table.
type ArtifactMeta struct {
	MemoryID  string `json:"memory_id"`
	Title     string `json:"title"`
	MIME      string `json:"mime"`
	Type      string `json:"type"`
	Bytes     int    `json:"bytes"`
	CreatedAt string `json:"created_at"`
}

// TurnSummary is one entry of .iris/runtime/turn_summaries.json.
type TurnSummary struct {
	TurnIndex       int    `json:"turn_index"`
	UserSketch      string `json:"user_sketch"`
	AssistantSketch string `json:"assistant_sketch"`
	CreatedAt       string `json:"created_at"`
}

// Sketch truncation limits per turn summary.
const (
	UserSketchMax      = 200
	AssistantSketchMax = 300
)

// Runtime holds the in-memory caches over the runtime JSON files. Each
// cache carries a dirty flag; flushes are explicit and best-effort. The
// last successful write wins; a failed flush keeps the dirty snapshot in
// memory so a retry sees known-good state.
type Runtime struct {
	fs *FS

	mu             sync.Mutex
	state          State
	stateDirty     bool
	index          []ArtifactMeta
	indexByID      map[string]int
	indexDirty     bool
	summaries      []TurnSummary
	summariesDirty bool
}

// NewRuntime loads the runtime caches from disk. Missing or malformed
// files fall back to valid-empty defaults.
func NewRuntime(fs *FS) *Runtime {
	r := &Runtime{fs: fs, indexByID: make(map[string]int)}
	fs.ReadJSON(StatePath, &r.state)
	fs.ReadJSON(IndexPath, &r.index)
	fs.ReadJSON(TurnSummariesPath, &r.summaries)
	for i, m := range r.index {
		r.indexByID[m.MemoryID] = i
	}
	return r
}

// State returns a snapshot of the runtime state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	s.KeyArtifacts = append([]string(nil), r.state.KeyArtifacts...)
	return s
}

// UpdateState applies fn to the cached state *and marks it dirty.
func (r *Runtime) UpdateState(fn func(*State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
	r.state.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	r.stateDirty = true
}

// UpdateIndexEntry inserts or replaces one artifact row and marks the
// index dirty.
func (r *Runtime) UpdateIndexEntry(meta ArtifactMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.indexByID[meta.MemoryID]; ok {
		r.index[i] = meta
	} else {
		r.indexByID[meta.MemoryID] = len(r.index)
		r.index = append(r.index, meta)
	}
	r.indexDirty = true
}

// RecentArtifacts returns up to n most recently added artifact rows,
// newest last.
func (r *Runtime) RecentArtifacts(n int) []ArtifactMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || len(r.index) == 0 {
		return nil
	}
	start := len(r.index) - n
	if start < 0 {
		start = 0
	}
	return append([]ArtifactMeta(nil), r.index[start:]...)
}

// AppendTurnSummary records one compressed turn, truncating sketches to
// their fixed limits.
func (r *Runtime) AppendTurnSummary(userSketch, assistantSketch string) TurnSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := TurnSummary{
		TurnIndex:       len(r.summaries),
		UserSketch:      truncate(userSketch, UserSketchMax),
		AssistantSketch: truncate(assistantSketch, AssistantSketchMax),
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	r.summaries = append(r.summaries, s)
	r.summariesDirty = true
	return s
}

// RecentTurnSummaries returns up to n most recent summaries, oldest first.
func (r *Runtime) RecentTurnSummaries(n int) []TurnSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || len(r.summaries) == 0 {
		return nil
	}
	start := len(r.summaries) - n
	if start < 0 {
		start = 0
	}
	return append([]TurnSummary(nil), r.summaries[start:]...)
}

// Flush writes every dirty cache back to disk. Errors are returned but
// leave the dirty flags set so a later flush retries.
func (r *Runtime) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stateDirty {
		if err := r.fs.WriteJSON(StatePath, r.state); err != nil {
			return err
		}
		r.stateDirty = false
	}
	if r.indexDirty {
		if err := r.fs.WriteJSON(IndexPath, r.index); err != nil {
			return err
		}
		r.indexDirty = false
	}
	if r.summariesDirty {
		if err := r.fs.WriteJSON(TurnSummariesPath, r.summaries); err != nil {
			return err
		}
		r.summariesDirty = false
	}
	return nil
}

// Dirty reports whether any cache has unflushed changes.
func (r *Runtime) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateDirty || r.indexDirty || r.summariesDirty
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

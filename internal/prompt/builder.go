package prompt

import (
	"fmt"
	"strings"

	"github.com/irisworks/iris/internal/config"
	"github.com/irisworks/iris/internal/instructions"
	"github.com/irisworks/iris/internal/thread"
	"github.com/irisworks/iris/internal/workspace"
)

// Builder assembles per-turn prompts from the instruction cache, the
// runtime state caches, and the pointerized thread log.
type Builder struct {
	instr *instructions.Cache
	rt    *workspace.Runtime
	cfg   *config.Config
}

// NewBuilder creates a prompt builder.
func NewBuilder(instr *instructions.Cache, rt *workspace.Runtime, cfg *config.Config) *Builder {
	return &Builder{instr: instr, rt: rt, cfg: cfg}
}

// Build produces the ordered prompt for one turn:
//
//  1. core instruction fragments, plus any task-relevant extras
//  2. a state-summary block with recent artifacts as pointers
//  3. the last N turn summaries, oldest first
//  4. the thread messages, as-is (already pointerized)
//  5. the new user message
//
// Bodies behind memory refs are never hydrated here.
func (b *Builder) Build(messages []thread.Message, userMessage string) []Chunk {
	chunks := []Chunk{{
		Message: thread.Message{Role: thread.RoleSystem, Content: b.instr.GetCoreInstructions()},
		Pinned:  true,
	}}

	for _, key := range SelectRelevantInstructions(userMessage) {
		frag, err := b.instr.Get(key)
		if err != nil {
			continue
		}
		chunks = append(chunks, Chunk{
			Message: thread.Message{Role: thread.RoleSystem, Content: frag},
			Pinned:  true,
		})
	}

	if block := b.stateBlock(); block != "" {
		chunks = append(chunks, Chunk{
			Message: thread.Message{Role: thread.RoleSystem, Content: block},
			Pinned:  true,
		})
	}

	if block := b.summaryBlock(); block != "" {
		chunks = append(chunks, Chunk{
			Message: thread.Message{Role: thread.RoleSystem, Content: block},
		})
	}

	for _, m := range messages {
		chunks = append(chunks, Chunk{Message: m})
	}

	chunks = append(chunks, Chunk{
		Message: thread.Message{Role: thread.RoleUser, Content: userMessage},
		Pinned:  true,
	})
	return chunks
}

// stateBlock renders the runtime state: mode, phase, and the most recent
// artifacts as pointers (id, title, mime) — never their bodies.
func (b *Builder) stateBlock() string {
	state := b.rt.State()
	artifacts := b.rt.RecentArtifacts(b.cfg.ArtifactWindow)
	if state.TaskMode == "" && state.CurrentPhase == "" && len(artifacts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Current state:\n")
	fmt.Fprintf(&sb, "- task_mode: %s\n", orDash(state.TaskMode))
	fmt.Fprintf(&sb, "- current_phase: %s\n", orDash(state.CurrentPhase))
	fmt.Fprintf(&sb, "- key_artifacts: %d\n", len(state.KeyArtifacts))
	if len(artifacts) > 0 {
		sb.WriteString("Recent artifacts (fetch by id when needed):\n")
		for _, a := range artifacts {
			fmt.Fprintf(&sb, "- %s %q %s\n", a.MemoryID, a.Title, a.MIME)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// summaryBlock renders the last N turn summaries, oldest first.
func (b *Builder) summaryBlock() string {
	summaries := b.rt.RecentTurnSummaries(b.cfg.TurnSummaryWindow)
	if len(summaries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Previous turns:\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "[%d] user: %s | assistant: %s\n", s.TurnIndex, s.UserSketch, s.AssistantSketch)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// instructionKeywords maps lowercase keywords in the user message to an
// optional extra fragment. Matching is deterministic: keys are checked in
// the fixed order below and each fragment is added at most once.
var instructionKeywords = []struct {
	fragment string
	words    []string
}{
	{instructions.KeyCodingRules, []string{"code", "implement", "refactor", "debug", "compile", "test"}},
	{instructions.KeyModePlanner, []string{"plan", "roadmap", "milestones", "phases"}},
	{instructions.KeyContextSelection, []string{"summarize", "recall", "earlier", "previous conversation"}},
}

// SelectRelevantInstructions picks extra fragments from keywords in the
// user message. Case-insensitive and deterministic.
func SelectRelevantInstructions(userMessage string) []string {
	lower := strings.ToLower(userMessage)
	var keys []string
	for _, entry := range instructionKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				keys = append(keys, entry.fragment)
				break
			}
		}
	}
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package prompt

import (
	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/config"
	"github.com/irisworks/iris/internal/thread"
)

// Governor notice bodies. The tier-two notice caps slice requests harder
// than the store itself does; the model is the target audience.
const (
	softNotice = `Context is getting large. Prefer the memory_fetch tool with small
line ranges over quoting prior output. Fetch only what the current step needs.`

	hardNotice = `Context limit reached: pointer-only mode. Do not expand or restate
offloaded content inline. Use memory_fetch with ranges of at most 200 lines,
and only when strictly required for the current step.`
)

// Governor enforces the two-tier token budget after compression. It is
// the only component that may inject system messages after the builder.
type Governor struct {
	cfg        *config.Config
	compressor *Compressor
	logger     *zap.Logger
}

// NewGovernor creates a governor sharing the compressor's estimator.
func NewGovernor(cfg *config.Config, compressor *Compressor, logger *zap.Logger) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{cfg: cfg, compressor: compressor, logger: logger}
}

// Apply enforces the budget tiers:
//
//   - below the soft limit: unchanged
//   - soft..hard: one injected notice steering toward small fetches
//   - at or above hard: recompress in pointer-only mode at the reduced
//     budget, then inject the stronger notice
func (g *Governor) Apply(chunks []Chunk) []Chunk {
	tokens := EstimateChunks(chunks)

	switch {
	case tokens < g.cfg.SoftTokenLimit:
		return chunks

	case tokens < g.cfg.HardTokenLimit:
		g.logger.Info("governor soft limit reached", zap.Int("tokens", tokens))
		return injectNotice(chunks, softNotice)

	default:
		// The injected notice counts against the reduced ceiling, so the
		// recompression budget leaves room for it.
		budget := g.cfg.ReducedTokenBudget - EstimateTokens(hardNotice)
		reduced, report := g.compressor.Compress(chunks, budget, true)
		// Forced reduction is informational, not an error.
		g.logger.Info("governor forced reduction",
			zap.Int("tokens_before", tokens),
			zap.Int("tokens_after", report.FinalTokens),
			zap.Int("dropped", report.Dropped),
			zap.Int("truncated", report.Truncated))
		return injectNotice(reduced, hardNotice)
	}
}

// injectNotice inserts a single system-injected message just before the
// final chunk (the live user message).
func injectNotice(chunks []Chunk, notice string) []Chunk {
	msg := Chunk{
		Message: thread.Message{
			Role:     thread.RoleSystem,
			Content:  notice,
			Metadata: thread.Metadata{Source: thread.SourceSystemInjected},
		},
		Pinned: true,
	}

	if len(chunks) == 0 {
		return []Chunk{msg}
	}
	out := make([]Chunk, 0, len(chunks)+1)
	out = append(out, chunks[:len(chunks)-1]...)
	out = append(out, msg, chunks[len(chunks)-1])
	return out
}

package prompt

import (
	"github.com/irisworks/iris/internal/config"
)

// Report describes what one compression pass did.
type Report struct {
	OriginalTokens int  `json:"original_tokens"`
	FinalTokens    int  `json:"final_tokens"`
	Dropped        int  `json:"dropped"`
	Truncated      int  `json:"truncated"`
	Overflow       bool `json:"overflow"` // non-droppable minimum alone exceeds the budget
}

// Compressor prunes a prompt to a token budget. It preserves message
// order, preserves every memory ref present in its input, and never
// hydrates one.
type Compressor struct {
	cfg *config.Config
}

// NewCompressor creates a compressor.
func NewCompressor(cfg *config.Config) *Compressor {
	return &Compressor{cfg: cfg}
}

// Compress applies the greedy tail-preserving pass: the newest messages
// are kept whole until the budget is spent; older ones are then kept as-is
// when pointerMode is set and they carry memory refs (already compact), or
// hard-truncated otherwise. If the prompt still exceeds the budget, the
// oldest unpinned messages are dropped. Pinned chunks are untouchable; if
// they alone exceed the budget the report flags overflow and the pinned
// minimum is returned with whatever else fits.
func (c *Compressor) Compress(chunks []Chunk, budgetTokens int, pointerMode bool) ([]Chunk, Report) {
	report := Report{OriginalTokens: EstimateChunks(chunks)}

	out := make([]Chunk, len(chunks))
	copy(out, chunks)

	pinnedCost := 0
	for _, ch := range out {
		if ch.Pinned {
			pinnedCost += EstimateTokens(ch.Content)
		}
	}
	if pinnedCost > budgetTokens {
		report.Overflow = true
	}

	// Tail-first pass over the unpinned chunks.
	budget := budgetTokens - pinnedCost
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Pinned {
			continue
		}
		cost := EstimateTokens(out[i].Content)
		if cost <= budget {
			budget -= cost
			continue
		}
		if pointerMode && len(out[i].Metadata.MemoryRefs) > 0 {
			// Already compact; keep it whole.
			budget -= cost
			continue
		}
		out[i].Content = truncateHead(out[i].Content, c.cfg.TruncatedHeadChars)
		report.Truncated++
		budget -= EstimateTokens(out[i].Content)
	}

	// Truncation may not be enough; drop oldest unpinned until within
	// budget. Order is preserved — dropping is removal, never reordering.
	for EstimateChunks(out) > budgetTokens {
		dropped := false
		for i := 0; i < len(out); i++ {
			if out[i].Pinned {
				continue
			}
			// Ref-bearing messages are never dropped: every memory ref in
			// the input survives to the output.
			if len(out[i].Metadata.MemoryRefs) > 0 {
				continue
			}
			out = append(out[:i], out[i+1:]...)
			report.Dropped++
			dropped = true
			break
		}
		if !dropped {
			break // only pinned and pointer-bearing chunks remain
		}
	}

	report.FinalTokens = EstimateChunks(out)
	return out, report
}

func truncateHead(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

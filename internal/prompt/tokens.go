// Package prompt assembles, compresses, and budget-governs LLM prompts
// from the pointerized thread log. Nothing in this package ever hydrates
// a memory reference.
package prompt

import "github.com/irisworks/iris/internal/thread"

// EstimateTokens approximates the token cost of text as ceil(len/4).
// Every budget decision in this package and the governor uses this same
// estimator.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Chunk is one role-tagged prompt element. Pinned chunks (system
// fragments and the live user message) are never dropped or truncated.
type Chunk struct {
	thread.Message
	Pinned bool
}

// EstimateChunks sums the token estimate over a prompt.
func EstimateChunks(chunks []Chunk) int {
	total := 0
	for _, c := range chunks {
		total += EstimateTokens(c.Content)
	}
	return total
}

// Package agent runs the turn loop: build prompt, call the model,
// dispatch tools, persist outputs, summarize. The LLM provider and all
// tools except memory_fetch are external collaborators behind interfaces.
package agent

import "context"

// LLMMessage is one role-tagged prompt element sent to the provider.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall is one model-requested tool invocation. Order within a
// response is the dispatch order.
type ToolCall struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	CallID string         `json:"call_id"`
}

// Usage reports provider-side token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// LLMResponse is the provider's answer: assistant text plus zero or more
// tool-call intents.
type LLMResponse struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// LLMOptions selects the model and bounds the completion.
type LLMOptions struct {
	ModelID   string
	MaxTokens int
}

// LLM is the opaque provider oracle. The core never retries a failed
// call; retry policy belongs to the caller.
type LLM interface {
	Call(ctx context.Context, messages []LLMMessage, opts LLMOptions) (*LLMResponse, error)
}

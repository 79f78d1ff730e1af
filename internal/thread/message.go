// Package thread is the append-only conversation log. Every ingress path
// runs through Append, which offloads oversized payloads to the memory
// store before anything reaches the durable sink — no record ever leaves
// with inline content over the threshold.
package thread

import (
	"context"
	"time"

	"github.com/irisworks/iris/internal/memory"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Metadata source values.
const (
	SourceLive           = "live"
	SourceReplay         = "replay"
	SourceSystemInjected = "system-injected"
)

// Metadata carries the reserved message metadata keys.
type Metadata struct {
	// MemoryRefs holds the capability handles for offloaded content. When
	// non-empty, Content is a summary ending with the pointer marker.
	MemoryRefs []memory.Ref `json:"memory_refs,omitempty"`

	// TokensSaved estimates the prompt tokens avoided by offloading.
	TokensSaved int `json:"tokens_saved,omitempty"`

	// Tool identity, present on tool results.
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	// IsSuccess is set on tool results.
	IsSuccess *bool `json:"is_success,omitempty"`

	// Source is live, replay, or system-injected.
	Source string `json:"source,omitempty"`
}

// Message is one record of the conversation log. Record order is the sole
// ground truth of causality.
type Message struct {
	ID        string    `json:"id"` // ULID; sorts with append order
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink durably stores messages. External collaborator; expected to be
// idempotent by (thread_id, created_at, role, content hash).
type Sink interface {
	Append(ctx context.Context, msg Message) error
}

package thread

import (
	"context"
	"sync"
)

// MemorySink is an in-process Sink: the default collaborator for embedded
// use and tests. Idempotent by message ID.
type MemorySink struct {
	mu   sync.Mutex
	seen map[string]bool
	msgs []Message
}

// NewMemorySink creates an empty in-process sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]bool)}
}

// Append implements Sink.
func (s *MemorySink) Append(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[msg.ID] {
		return nil
	}
	s.seen[msg.ID] = true
	s.msgs = append(s.msgs, msg)
	return nil
}

// Messages returns all stored messages in append order.
func (s *MemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

package agent

import (
	"time"

	"github.com/irisworks/iris/internal/memory"
)

// EventType labels one runtime lifecycle event.
type EventType string

// Turn lifecycle events, emitted in order within a turn. Payloads carry
// pointers and counters only, never offloaded content.
const (
	EventTurnBegin       EventType = "turn_begin"
	EventPromptBuilt     EventType = "prompt_built"
	EventLLMStarted      EventType = "llm_started"
	EventLLMFinished     EventType = "llm_finished"
	EventToolStarted     EventType = "tool_started"
	EventToolFinished    EventType = "tool_finished"
	EventMessageAppended EventType = "message_appended"
	EventTurnEnd         EventType = "turn_end"
)

// Event is one observability record.
type Event struct {
	Type      EventType    `json:"type"`
	TurnIndex int          `json:"turn_index"`
	At        time.Time    `json:"at"`
	MessageID string       `json:"message_id,omitempty"`
	ToolName  string       `json:"tool_name,omitempty"`
	CallID    string       `json:"call_id,omitempty"`
	Refs      []memory.Ref `json:"refs,omitempty"`
	Tokens    int          `json:"tokens,omitempty"`
	Success   bool         `json:"success,omitempty"`
	Err       string       `json:"err,omitempty"`
}

// Emitter receives lifecycle events. Implementations must not block the
// turn loop.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}

// ChanEmitter buffers events on a channel for an external consumer.
// When the buffer is full the event is dropped rather than blocking.
type ChanEmitter struct {
	ch chan Event
}

// NewChanEmitter returns an emitter with the given buffer size.
func NewChanEmitter(buffer int) *ChanEmitter {
	return &ChanEmitter{ch: make(chan Event, buffer)}
}

// Emit implements Emitter.
func (e *ChanEmitter) Emit(ev Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

// Events exposes the buffered stream.
func (e *ChanEmitter) Events() <-chan Event {
	return e.ch
}

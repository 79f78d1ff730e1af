package thread

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/config"
	"github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/memory"
)

// Log appends pointerized messages to the durable sink for one thread.
type Log struct {
	threadID string
	store    *memory.Store
	sink     Sink
	cfg      *config.Config
	logger   *zap.Logger

	mu       sync.Mutex
	entropy  *ulid.MonotonicEntropy
	messages []Message // in-memory view for prompt building
}

// NewLog creates the message log for one thread.
func NewLog(threadID string, store *memory.Store, sink Sink, cfg *config.Config, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		threadID: threadID,
		store:    store,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// Append pointerizes oversized content, persists the record, and returns
// it. Atomic from the caller's view: on a sink failure the CAS blob may
// remain (harmless; duplicate puts are free on retry) but no record is
// recorded.
func (l *Log) Append(ctx context.Context, role, content string, meta Metadata) (Message, error) {
	// Assistant and tool payloads always run the pointer protocol; other
	// roles only when the content is oversized (e.g. a huge user paste).
	// The protocol passes short content through untouched either way.
	if role == RoleAssistant || role == RoleTool || len(content) > l.cfg.OffloadThresholdChars {
		content, meta = l.pointerize(content, meta, role)
	}

	return l.persist(ctx, role, content, meta)
}

// AppendBinary offloads a binary payload (binary bytes are never inlined)
// and persists its summary record.
func (l *Log) AppendBinary(ctx context.Context, role string, data []byte, mime string, meta Metadata) (Message, error) {
	res, err := l.store.OffloadBinary(data, memory.PutOptions{
		Type:    classify(role, meta.ToolName),
		Subtype: meta.ToolName,
		MIME:    mime,
	})
	if err != nil {
		return Message{}, err
	}
	meta.MemoryRefs = append(meta.MemoryRefs, res.Ref)
	meta.TokensSaved += res.TokensSaved
	return l.persist(ctx, role, res.Summary, meta)
}

// pointerize applies the pointer protocol. A CAS failure is scoped to this
// one message: the content degrades to a hard-truncated inline head and
// the turn continues.
func (l *Log) pointerize(content string, meta Metadata, role string) (string, Metadata) {
	if len(content) <= l.cfg.OffloadThresholdChars {
		return content, meta
	}

	res, err := l.store.Offload(content, memory.PutOptions{
		Type:    classify(role, meta.ToolName),
		Subtype: meta.ToolName,
	})
	if err != nil {
		l.logger.Warn("offload failed, truncating inline",
			zap.String("role", role),
			zap.String("code", string(errors.CodeOf(err))),
			zap.Int("chars", len(content)))
		return content[:l.cfg.OffloadThresholdChars], meta
	}

	meta.MemoryRefs = append(meta.MemoryRefs, res.Ref)
	meta.TokensSaved += res.TokensSaved
	return res.Summary, meta
}

func (l *Log) persist(ctx context.Context, role, content string, meta Metadata) (Message, error) {
	if meta.Source == "" {
		meta.Source = SourceLive
	}

	l.mu.Lock()
	now := time.Now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), l.entropy).String()
	l.mu.Unlock()

	msg := Message{
		ID:        id,
		ThreadID:  l.threadID,
		Role:      role,
		Content:   content,
		Metadata:  meta,
		CreatedAt: now,
	}

	if err := l.sink.Append(ctx, msg); err != nil {
		return Message{}, errors.NewSink(err)
	}

	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
	return msg, nil
}

// Messages returns a snapshot of the in-memory log view, in append order.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// classify maps a message role to a memory index type.
func classify(role, toolName string) string {
	switch {
	case role == RoleTool && toolName == "web_search":
		return memory.TypeWebScrape
	case role == RoleTool:
		return memory.TypeToolOutput
	case role == RoleUser:
		return memory.TypeUserUpload
	default:
		return memory.TypeOther
	}
}

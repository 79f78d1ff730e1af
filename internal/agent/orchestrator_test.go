package agent

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/irisworks/iris/internal/config"
	irerrors "github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/instructions"
	"github.com/irisworks/iris/internal/memory"
	"github.com/irisworks/iris/internal/prompt"
	"github.com/irisworks/iris/internal/thread"
	"github.com/irisworks/iris/internal/workspace"
)

// scriptedLLM replays canned responses and records every prompt it saw.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*LLMResponse
	err       error
	calls     [][]LLMMessage
	onCall    func(round int)
}

func (s *scriptedLLM) Call(_ context.Context, msgs []LLMMessage, _ LLMOptions) (*LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	if s.onCall != nil {
		s.onCall(len(s.calls))
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &LLMResponse{Text: "done"}, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

type failingSink struct{}

func (failingSink) Append(context.Context, thread.Message) error {
	return stderrors.New("disk gone")
}

type harness struct {
	cfg     *config.Config
	fs      *workspace.FS
	rt      *workspace.Runtime
	store   *memory.Store
	log     *thread.Log
	reg     *Registry
	emitter *ChanEmitter
	orch    *Orchestrator
}

func newHarness(t *testing.T, llm LLM, sink thread.Sink) *harness {
	t.Helper()
	root := t.TempDir()
	if err := workspace.EnsureWorkspace(root); err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	cfg := config.DefaultConfig()
	fs := workspace.NewFS(root, nil)
	if err := instructions.Seed(fs); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	cache, err := instructions.LoadAll(fs)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	store, err := memory.Open(root, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if sink == nil {
		sink = thread.NewMemorySink()
	}
	rt := workspace.NewRuntime(fs)
	log := thread.NewLog("t1", store, sink, cfg, nil)
	builder := prompt.NewBuilder(cache, rt, cfg)
	comp := prompt.NewCompressor(cfg)
	gov := prompt.NewGovernor(cfg, comp, nil)
	reg := NewRegistry()
	RegisterMemoryFetch(reg, store)
	em := NewChanEmitter(256)

	return &harness{
		cfg: cfg, fs: fs, rt: rt, store: store, log: log, reg: reg, emitter: em,
		orch: NewOrchestrator(cfg, fs, rt, log, builder, comp, gov, llm, reg, em, nil),
	}
}

func (h *harness) drainEvents() []Event {
	var events []Event
	for {
		select {
		case e := <-h.emitter.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestRunTurn_PlainAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{{Text: "hello there"}}}
	h := newHarness(t, llm, nil)

	res, err := h.orch.RunTurn(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.AssistantText != "hello there" {
		t.Errorf("AssistantText = %q", res.AssistantText)
	}
	msgs := h.log.Messages()
	if len(msgs) != 2 {
		t.Fatalf("thread has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != thread.RoleUser || msgs[1].Role != thread.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}

	summaries := h.rt.RecentTurnSummaries(10)
	if len(summaries) != 1 {
		t.Fatalf("got %d turn summaries, want 1", len(summaries))
	}
	if summaries[0].UserSketch != "say hi" {
		t.Errorf("user sketch = %q", summaries[0].UserSketch)
	}
	if !h.fs.Exists(workspace.LastTurnPath) {
		t.Error("last_turn.json not written")
	}

	events := h.drainEvents()
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Type != EventTurnBegin {
		t.Errorf("first event = %s, want turn_begin", events[0].Type)
	}
	if events[len(events)-1].Type != EventTurnEnd {
		t.Errorf("last event = %s, want turn_end", events[len(events)-1].Type)
	}
}

func TestRunTurn_OversizedUserPastePinnedAsSummary(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{{Text: "got it"}}}
	h := newHarness(t, llm, nil)

	paste := strings.Repeat("p", 10000)
	res, err := h.orch.RunTurn(context.Background(), paste)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	userMsg := res.Messages[0]
	if len(userMsg.Metadata.MemoryRefs) != 1 {
		t.Fatalf("got %d refs on the user record, want 1", len(userMsg.Metadata.MemoryRefs))
	}

	// The provider sees the pointerized record, never the raw paste.
	sent := llm.calls[0][len(llm.calls[0])-1]
	if sent.Content != userMsg.Content {
		t.Error("pinned user message differs from the appended record")
	}
	if len(sent.Content) >= len(paste)/2 {
		t.Errorf("pinned user message is %d chars, want the offloaded summary", len(sent.Content))
	}
	if !strings.HasSuffix(sent.Content, memory.PointerMarker) {
		t.Errorf("pinned user message does not end with the pointer marker: %q", sent.Content[len(sent.Content)-40:])
	}
}

func TestRunTurn_ToolContinuation(t *testing.T) {
	llm := &scriptedLLM{}
	h := newHarness(t, llm, nil)

	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("alpha beta gamma\n")
	}
	ref, err := h.store.PutText(sb.String(), memory.PutOptions{Type: memory.TypeToolOutput})
	if err != nil {
		t.Fatalf("PutText: %v", err)
	}
	llm.responses = []*LLMResponse{
		{Text: "let me look that up", ToolCalls: []ToolCall{{
			Name:   MemoryFetchTool,
			Args:   map[string]any{"memory_id": ref.ID, "line_start": float64(1), "line_end": float64(3)},
			CallID: "call-1",
		}}},
		{Text: "found it"},
	}

	res, err := h.orch.RunTurn(context.Background(), "what did the scan say")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", res.ToolCalls)
	}
	if res.AssistantText != "found it" {
		t.Errorf("AssistantText = %q", res.AssistantText)
	}

	msgs := h.log.Messages()
	if len(msgs) != 4 {
		t.Fatalf("thread has %d messages, want 4", len(msgs))
	}
	tool := msgs[2]
	if tool.Role != thread.RoleTool {
		t.Fatalf("msgs[2].Role = %s, want tool", tool.Role)
	}
	if tool.Metadata.ToolName != MemoryFetchTool || tool.Metadata.ToolCallID != "call-1" {
		t.Errorf("tool metadata = %+v", tool.Metadata)
	}
	if tool.Metadata.IsSuccess == nil || !*tool.Metadata.IsSuccess {
		t.Error("is_success not true")
	}
	if !strings.Contains(tool.Content, "alpha beta gamma") {
		t.Errorf("tool content = %q", tool.Content)
	}

	// The second provider call must see the fetched slice.
	if len(llm.calls) != 2 {
		t.Fatalf("provider called %d times, want 2", len(llm.calls))
	}
	var seen bool
	for _, m := range llm.calls[1] {
		if strings.Contains(m.Content, "alpha beta gamma") {
			seen = true
		}
	}
	if !seen {
		t.Error("continuation prompt does not include the tool output")
	}
}

func TestRunTurn_OversizedToolOutputPointerized(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{
		{Text: "dumping", ToolCalls: []ToolCall{{Name: "dump", CallID: "c1"}}},
		{Text: "ok"},
	}}
	h := newHarness(t, llm, nil)

	big := strings.Repeat("x", 10000)
	h.reg.Register("dump", false, func(context.Context, map[string]any) (ToolResult, error) {
		return ToolResult{Output: big, IsSuccess: true}, nil
	})

	if _, err := h.orch.RunTurn(context.Background(), "dump everything"); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	msgs := h.log.Messages()
	tool := msgs[2]
	if got := len(tool.Content); got < 840 || got > 848 {
		t.Errorf("tool summary length = %d, want 844±4", got)
	}
	if !strings.HasSuffix(tool.Content, memory.PointerMarker) {
		t.Errorf("tool summary does not end with pointer marker: %q", tool.Content[len(tool.Content)-40:])
	}
	refs := tool.Metadata.MemoryRefs
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1", len(refs))
	}

	// The orchestrator registers every new ref as a key artifact.
	arts := h.rt.RecentArtifacts(10)
	var indexed bool
	for _, a := range arts {
		if a.MemoryID == refs[0].ID {
			indexed = true
		}
	}
	if !indexed {
		t.Error("offloaded tool output missing from artifact index")
	}
	state := h.rt.State()
	var keyed bool
	for _, id := range state.KeyArtifacts {
		if id == refs[0].ID {
			keyed = true
		}
	}
	if !keyed {
		t.Error("offloaded tool output missing from key_artifacts")
	}
}

func TestRunTurn_ToolErrorContinuesTurn(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{
		{Text: "trying", ToolCalls: []ToolCall{{Name: "boom", CallID: "c1"}}},
		{Text: "that failed, moving on"},
	}}
	h := newHarness(t, llm, nil)
	h.reg.Register("boom", false, func(context.Context, map[string]any) (ToolResult, error) {
		return ToolResult{}, stderrors.New("upstream exploded")
	})

	res, err := h.orch.RunTurn(context.Background(), "try the thing")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.AssistantText != "that failed, moving on" {
		t.Errorf("AssistantText = %q", res.AssistantText)
	}

	tool := h.log.Messages()[2]
	if tool.Metadata.IsSuccess == nil || *tool.Metadata.IsSuccess {
		t.Error("is_success not false")
	}
	if !strings.Contains(tool.Content, "upstream exploded") {
		t.Errorf("tool content = %q", tool.Content)
	}
}

func TestRunTurn_LLMErrorAborts(t *testing.T) {
	llm := &scriptedLLM{err: stderrors.New("rate limited")}
	h := newHarness(t, llm, nil)

	_, err := h.orch.RunTurn(context.Background(), "hello")
	if !irerrors.Is(err, irerrors.ErrLLM) {
		t.Fatalf("err = %v, want LLM code", err)
	}
	// The user record stands; nothing else was appended.
	msgs := h.log.Messages()
	if len(msgs) != 1 || msgs[0].Role != thread.RoleUser {
		t.Errorf("thread = %d messages", len(msgs))
	}
	if got := h.rt.RecentTurnSummaries(10); len(got) != 0 {
		t.Errorf("got %d turn summaries, want 0", len(got))
	}
}

func TestRunTurn_SinkFailureAborts(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{{Text: "hi"}}}
	h := newHarness(t, llm, failingSink{})

	_, err := h.orch.RunTurn(context.Background(), "hello")
	if !irerrors.Is(err, irerrors.ErrSink) {
		t.Fatalf("err = %v, want SINK code", err)
	}
	if got := h.rt.RecentTurnSummaries(10); len(got) != 0 {
		t.Errorf("got %d turn summaries, want 0", len(got))
	}
}

func TestRunTurn_CancellationSkipsSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &scriptedLLM{
		responses: []*LLMResponse{{
			Text:      "starting",
			ToolCalls: []ToolCall{{Name: MemoryFetchTool, Args: map[string]any{"memory_id": "x"}, CallID: "c1"}},
		}},
	}
	llm.onCall = func(int) { cancel() }
	h := newHarness(t, llm, nil)

	res, err := h.orch.RunTurn(ctx, "long job")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !res.Canceled {
		t.Error("Canceled = false, want true")
	}
	if got := h.rt.RecentTurnSummaries(10); len(got) != 0 {
		t.Errorf("got %d turn summaries after cancel, want 0", len(got))
	}

	var rec lastTurnRecord
	if !h.fs.ReadJSON(workspace.LastTurnPath, &rec) {
		t.Fatal("last_turn.json unreadable")
	}
	if !rec.Canceled {
		t.Error("last_turn.json canceled = false")
	}
}

func TestRunTurn_ContinuationLimit(t *testing.T) {
	// A model that never stops requesting tools gets cut off.
	llm := &scriptedLLM{}
	h := newHarness(t, llm, nil)
	h.reg.Register("noop", true, func(context.Context, map[string]any) (ToolResult, error) {
		return ToolResult{Output: "ok", IsSuccess: true}, nil
	})
	relentless := &LLMResponse{Text: "again", ToolCalls: []ToolCall{{Name: "noop", CallID: "c"}}}
	for i := 0; i < 20; i++ {
		llm.responses = append(llm.responses, relentless)
	}

	res, err := h.orch.RunTurn(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(llm.calls) != maxContinuations+1 {
		t.Errorf("provider called %d times, want %d", len(llm.calls), maxContinuations+1)
	}
	if res.Canceled {
		t.Error("Canceled = true, want false")
	}
}

func TestRegistry_DispatchPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register("slow", true, func(context.Context, map[string]any) (ToolResult, error) {
		time.Sleep(20 * time.Millisecond)
		return ToolResult{Output: "slow done", IsSuccess: true}, nil
	})
	reg.Register("fast", true, func(context.Context, map[string]any) (ToolResult, error) {
		return ToolResult{Output: "fast done", IsSuccess: true}, nil
	})

	outcomes := reg.dispatch(context.Background(), []ToolCall{
		{Name: "slow", CallID: "1"},
		{Name: "fast", CallID: "2"},
	}, 0)
	if outcomes[0].res.Output != "slow done" || outcomes[1].res.Output != "fast done" {
		t.Errorf("outcomes out of order: %q, %q", outcomes[0].res.Output, outcomes[1].res.Output)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), "nope", nil, 0)
	if !irerrors.Is(err, irerrors.ErrTool) {
		t.Fatalf("err = %v, want TOOL code", err)
	}
}

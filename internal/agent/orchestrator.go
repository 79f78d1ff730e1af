package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/config"
	irerrors "github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/prompt"
	"github.com/irisworks/iris/internal/thread"
	"github.com/irisworks/iris/internal/workspace"
)

// maxContinuations bounds how many model round-trips one turn may take.
// A model that keeps requesting tools past this is cut off and the last
// assistant text finalizes the turn.
const maxContinuations = 8

// Orchestrator owns the turn lifecycle. It is the only component that
// mutates the runtime state caches or injects messages into the prompt
// after the builder.
type Orchestrator struct {
	cfg      *config.Config
	logger   *zap.Logger
	fs       *workspace.FS
	rt       *workspace.Runtime
	log      *thread.Log
	builder  *prompt.Builder
	comp     *prompt.Compressor
	governor *prompt.Governor
	llm      LLM
	registry *Registry
	emitter  Emitter
	llmOpts  LLMOptions

	mu        sync.Mutex
	turnIndex int
}

// NewOrchestrator wires the turn loop. A nil emitter discards events.
func NewOrchestrator(
	cfg *config.Config,
	fs *workspace.FS,
	rt *workspace.Runtime,
	log *thread.Log,
	builder *prompt.Builder,
	comp *prompt.Compressor,
	governor *prompt.Governor,
	llm LLM,
	registry *Registry,
	emitter Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		fs:       fs,
		rt:       rt,
		log:      log,
		builder:  builder,
		comp:     comp,
		governor: governor,
		llm:      llm,
		registry: registry,
		emitter:  emitter,
	}
}

// SetLLMOptions sets the model selection used for every provider call.
func (o *Orchestrator) SetLLMOptions(opts LLMOptions) {
	o.llmOpts = opts
}

// TurnResult is what one completed turn produced.
type TurnResult struct {
	TurnIndex     int
	AssistantText string
	Messages      []thread.Message // records appended during this turn
	Report        prompt.Report    // compression report of the final prompt
	ToolCalls     int
	Canceled      bool
}

// lastTurnRecord mirrors .iris/runtime/last_turn.json, a debug snapshot
// of the most recent turn.
type lastTurnRecord struct {
	TurnIndex  int           `json:"turn_index"`
	MessageIDs []string      `json:"message_ids"`
	ToolCalls  int           `json:"tool_calls"`
	Report     prompt.Report `json:"report"`
	Canceled   bool          `json:"canceled"`
	FinishedAt string        `json:"finished_at"`
}

// RunTurn executes one full turn: append the user message, build and
// govern the prompt, call the model, dispatch any requested tools, and
// loop until the model stops requesting tools. The returned error aborts
// the turn only for sink or provider failures; single-tool failures are
// recorded in the thread and the turn continues.
//
// Cancellation via ctx stops new LLM calls and tool dispatches; completed
// tool outputs are still appended, and the turn summary is skipped.
func (o *Orchestrator) RunTurn(ctx context.Context, userText string) (*TurnResult, error) {
	o.mu.Lock()
	turn := o.turnIndex
	o.turnIndex++
	o.mu.Unlock()

	o.emitter.Emit(Event{Type: EventTurnBegin, TurnIndex: turn, At: time.Now().UTC()})

	// Snapshot the thread before the user record so the builder, which
	// pins the live user message last, sees it exactly once.
	history := o.log.Messages()

	userMsg, err := o.log.Append(ctx, thread.RoleUser, userText, thread.Metadata{})
	if err != nil {
		o.emitter.Emit(Event{Type: EventTurnEnd, TurnIndex: turn, At: time.Now().UTC(), Err: err.Error()})
		return nil, err
	}
	o.recordRefs(userMsg)
	o.emitter.Emit(Event{
		Type: EventMessageAppended, TurnIndex: turn, At: time.Now().UTC(),
		MessageID: userMsg.ID, Refs: userMsg.Metadata.MemoryRefs,
	})

	result := &TurnResult{TurnIndex: turn, Messages: []thread.Message{userMsg}}

	for round := 0; ; round++ {
		// Pin the user record as appended, not the raw text: an oversized
		// paste was already pointerized and must ride through the turn as
		// its summary.
		chunks := o.builder.Build(history, userMsg.Content)
		compressed, report := o.comp.Compress(chunks, o.cfg.HardTokenLimit, false)
		governed := o.governor.Apply(compressed)
		result.Report = report
		o.emitter.Emit(Event{
			Type: EventPromptBuilt, TurnIndex: turn, At: time.Now().UTC(),
			Tokens: prompt.EstimateChunks(governed),
		})

		o.emitter.Emit(Event{Type: EventLLMStarted, TurnIndex: turn, At: time.Now().UTC()})
		resp, err := o.callLLM(ctx, toLLMMessages(governed))
		if err != nil {
			// Provider failures leave the thread untouched for this round.
			o.emitter.Emit(Event{Type: EventLLMFinished, TurnIndex: turn, At: time.Now().UTC(), Err: err.Error()})
			o.emitter.Emit(Event{Type: EventTurnEnd, TurnIndex: turn, At: time.Now().UTC(), Err: err.Error()})
			return nil, err
		}
		o.emitter.Emit(Event{
			Type: EventLLMFinished, TurnIndex: turn, At: time.Now().UTC(),
			Tokens: resp.Usage.CompletionTokens, Success: true,
		})

		asstMsg, err := o.log.Append(ctx, thread.RoleAssistant, resp.Text, thread.Metadata{})
		if err != nil {
			o.emitter.Emit(Event{Type: EventTurnEnd, TurnIndex: turn, At: time.Now().UTC(), Err: err.Error()})
			return nil, err
		}
		o.recordRefs(asstMsg)
		o.emitter.Emit(Event{
			Type: EventMessageAppended, TurnIndex: turn, At: time.Now().UTC(),
			MessageID: asstMsg.ID, Refs: asstMsg.Metadata.MemoryRefs,
		})
		history = append(history, asstMsg)
		result.Messages = append(result.Messages, asstMsg)
		result.AssistantText = asstMsg.Content

		if len(resp.ToolCalls) == 0 {
			break
		}
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
		if round >= maxContinuations {
			o.logger.Warn("continuation limit reached", zap.Int("turn", turn), zap.Int("rounds", round))
			break
		}

		toolMsgs, aborted, err := o.runTools(ctx, turn, resp.ToolCalls)
		result.ToolCalls += len(resp.ToolCalls)
		if err != nil {
			o.emitter.Emit(Event{Type: EventTurnEnd, TurnIndex: turn, At: time.Now().UTC(), Err: err.Error()})
			return nil, err
		}
		history = append(history, toolMsgs...)
		result.Messages = append(result.Messages, toolMsgs...)
		if aborted {
			result.Canceled = true
			break
		}
	}

	if ctx.Err() != nil {
		result.Canceled = true
	}
	if !result.Canceled {
		o.rt.AppendTurnSummary(userText, result.AssistantText)
	}
	o.finishTurn(turn, result)
	o.emitter.Emit(Event{Type: EventTurnEnd, TurnIndex: turn, At: time.Now().UTC(), Success: !result.Canceled})
	return result, nil
}

// runTools dispatches one batch of model-requested calls and appends each
// outcome to the thread in declared order. A failed tool is recorded with
// is_success=false and the turn continues; only a sink failure aborts.
// aborted is set when cancellation stopped part of the batch.
func (o *Orchestrator) runTools(ctx context.Context, turn int, calls []ToolCall) (msgs []thread.Message, aborted bool, err error) {
	deadline := time.Duration(o.cfg.LLMTimeoutMS) * time.Millisecond
	for _, c := range calls {
		o.emitter.Emit(Event{
			Type: EventToolStarted, TurnIndex: turn, At: time.Now().UTC(),
			ToolName: c.Name, CallID: c.CallID,
		})
	}

	outcomes := o.registry.dispatch(ctx, calls, deadline)

	for _, oc := range outcomes {
		ok := oc.err == nil && oc.res.IsSuccess
		meta := thread.Metadata{
			ToolName:   oc.call.Name,
			ToolCallID: oc.call.CallID,
			IsSuccess:  &ok,
		}
		o.emitter.Emit(Event{
			Type: EventToolFinished, TurnIndex: turn, At: time.Now().UTC(),
			ToolName: oc.call.Name, CallID: oc.call.CallID, Success: ok,
		})

		var msg thread.Message
		var appendErr error
		switch {
		case oc.err != nil:
			msg, appendErr = o.log.Append(ctx, thread.RoleTool, oc.err.Error(), meta)
		case len(oc.res.Binary) > 0:
			msg, appendErr = o.log.AppendBinary(ctx, thread.RoleTool, oc.res.Binary, oc.res.MIME, meta)
		default:
			msg, appendErr = o.log.Append(ctx, thread.RoleTool, oc.res.Output, meta)
		}
		if appendErr != nil {
			return msgs, false, appendErr
		}
		o.recordRefs(msg)
		o.emitter.Emit(Event{
			Type: EventMessageAppended, TurnIndex: turn, At: time.Now().UTC(),
			MessageID: msg.ID, Refs: msg.Metadata.MemoryRefs,
		})
		msgs = append(msgs, msg)
		if oc.err != nil && ctx.Err() != nil {
			aborted = true
		}
	}
	return msgs, aborted, nil
}

// callLLM runs one provider call under the configured timeout and maps
// failures to stable codes. Caller cancellation is passed through as-is.
func (o *Orchestrator) callLLM(ctx context.Context, msgs []LLMMessage) (*LLMResponse, error) {
	callCtx := ctx
	if o.cfg.LLMTimeoutMS > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.LLMTimeoutMS)*time.Millisecond)
		defer cancel()
	}
	resp, err := o.llm.Call(callCtx, msgs, o.llmOpts)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, irerrors.NewLLMTimeout(o.cfg.LLMTimeoutMS)
		}
		if _, ok := err.(*irerrors.IrisError); ok {
			return nil, err
		}
		return nil, irerrors.NewLLM(err)
	}
	if resp == nil {
		return nil, irerrors.NewLLM(fmt.Errorf("provider returned no response"))
	}
	return resp, nil
}

// recordRefs registers any memory refs the message carries in the artifact
// index and the state's key-artifact list.
func (o *Orchestrator) recordRefs(msg thread.Message) {
	refs := msg.Metadata.MemoryRefs
	if len(refs) == 0 {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range refs {
		o.rt.UpdateIndexEntry(workspace.ArtifactMeta{
			MemoryID:  r.ID,
			Title:     r.Title,
			MIME:      r.MIME,
			Type:      r.Type,
			Bytes:     r.Bytes,
			CreatedAt: now,
		})
	}
	o.rt.UpdateState(func(s *workspace.State) {
		for _, r := range refs {
			s.KeyArtifacts = append(s.KeyArtifacts, r.ID)
		}
	})
}

// finishTurn flushes the runtime caches and writes the debug snapshot.
// Both are best-effort; failures are logged, never raised.
func (o *Orchestrator) finishTurn(turn int, result *TurnResult) {
	if err := o.rt.Flush(); err != nil {
		o.logger.Warn("runtime flush failed", zap.Int("turn", turn), zap.Error(err))
	}

	ids := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		ids = append(ids, m.ID)
	}
	rec := lastTurnRecord{
		TurnIndex:  turn,
		MessageIDs: ids,
		ToolCalls:  result.ToolCalls,
		Report:     result.Report,
		Canceled:   result.Canceled,
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := o.fs.WriteJSON(workspace.LastTurnPath, rec); err != nil {
		o.logger.Warn("last_turn write failed", zap.Int("turn", turn), zap.Error(err))
	}
}

// toLLMMessages flattens governed chunks into provider messages.
func toLLMMessages(chunks []prompt.Chunk) []LLMMessage {
	out := make([]LLMMessage, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, LLMMessage{Role: ch.Role, Content: ch.Content})
	}
	return out
}

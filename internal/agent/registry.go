package agent

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	irerrors "github.com/irisworks/iris/internal/errors"
)

// ToolResult is the outcome of one tool invocation. Binary is set instead
// of Output when the tool produced non-text data; MIME describes either.
type ToolResult struct {
	Output    string
	Binary    []byte
	MIME      string
	IsSuccess bool
}

// ToolFunc executes one tool call. A returned error means the tool itself
// failed; the orchestrator records the failure and continues the turn.
type ToolFunc func(ctx context.Context, args map[string]any) (ToolResult, error)

type toolEntry struct {
	fn   ToolFunc
	pure bool
}

// Registry maps tool names to implementations. Tools declared pure may be
// dispatched in parallel; all others run serially in declared order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]toolEntry
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]toolEntry)}
}

// Register adds or replaces a tool under name.
func (r *Registry) Register(name string, pure bool, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = toolEntry{fn: fn, pure: pure}
}

// Pure reports whether name is registered and declared side-effect free.
func (r *Registry) Pure(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name].pure
}

// Names returns the registered tool names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Invoke runs one tool under an optional deadline. Unknown names and
// timeouts surface as TOOL errors; the tool's own failure comes back in
// the result with IsSuccess false.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, deadline time.Duration) (ToolResult, error) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ToolResult{}, irerrors.NewTool(name, "tool not registered")
	}
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}
	res, err := entry.fn(ctx, args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ToolResult{}, irerrors.NewTool(name, "deadline exceeded")
		}
		return ToolResult{}, err
	}
	return res, nil
}

// toolOutcome pairs a call with its result or error, slotted by declared
// position so joined output preserves call order.
type toolOutcome struct {
	call ToolCall
	res  ToolResult
	err  error
}

// dispatch runs a batch of tool calls. Pure tools run concurrently via an
// errgroup; impure tools run serially after the parallel wave completes.
// Results come back in declared order. A canceled context stops new
// dispatches but already-collected outcomes are still returned.
func (r *Registry) dispatch(ctx context.Context, calls []ToolCall, deadline time.Duration) []toolOutcome {
	outcomes := make([]toolOutcome, len(calls))
	for i, c := range calls {
		outcomes[i].call = c
	}

	g, gctx := errgroup.WithContext(ctx)
	var serial []int
	for i, c := range calls {
		if !r.Pure(c.Name) {
			serial = append(serial, i)
			continue
		}
		i, c := i, c
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i].err = irerrors.NewTool(c.Name, "canceled before dispatch")
				return nil
			}
			outcomes[i].res, outcomes[i].err = r.Invoke(gctx, c.Name, c.Args, deadline)
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range serial {
		c := calls[i]
		if ctx.Err() != nil {
			outcomes[i].err = irerrors.NewTool(c.Name, "canceled before dispatch")
			continue
		}
		outcomes[i].res, outcomes[i].err = r.Invoke(ctx, c.Name, c.Args, deadline)
	}
	return outcomes
}

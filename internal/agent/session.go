package agent

import (
	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/config"
	"github.com/irisworks/iris/internal/instructions"
	"github.com/irisworks/iris/internal/logging"
	"github.com/irisworks/iris/internal/memory"
	"github.com/irisworks/iris/internal/prompt"
	"github.com/irisworks/iris/internal/thread"
	"github.com/irisworks/iris/internal/workspace"
)

// Session assembles the full runtime over one sandbox root: bootstrapped
// workspace, memory store, thread log, prompt pipeline, and turn loop.
type Session struct {
	Orchestrator *Orchestrator
	Store        *memory.Store
	Registry     *Registry
	Runtime      *workspace.Runtime

	logger *zap.Logger
}

// SessionOptions configures NewSession. Zero values take defaults.
type SessionOptions struct {
	ThreadID string      // default "main"
	Sink     thread.Sink // default in-process sink
	Emitter  Emitter     // default discard
	LLMOpts  LLMOptions  // passed to every provider call
	Logger   *zap.Logger // default: ops.log under the sandbox
}

// NewSession bootstraps root (idempotent), seeds the instruction cache,
// and wires every component. The returned session owns the store and the
// ops logger; release both with Close.
func NewSession(root string, llm LLM, opts SessionOptions) (*Session, error) {
	if err := workspace.EnsureWorkspace(root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.Open(root)
		if err != nil {
			return nil, err
		}
	}

	fs := workspace.NewFS(root, logger)
	if err := instructions.Seed(fs); err != nil {
		return nil, err
	}
	cache, err := instructions.LoadAll(fs)
	if err != nil {
		return nil, err
	}

	store, err := memory.Open(root, cfg, logger)
	if err != nil {
		return nil, err
	}

	sink := opts.Sink
	if sink == nil {
		sink = thread.NewMemorySink()
	}
	threadID := opts.ThreadID
	if threadID == "" {
		threadID = "main"
	}

	rt := workspace.NewRuntime(fs)
	log := thread.NewLog(threadID, store, sink, cfg, logger)
	builder := prompt.NewBuilder(cache, rt, cfg)
	comp := prompt.NewCompressor(cfg)
	governor := prompt.NewGovernor(cfg, comp, logger)

	reg := NewRegistry()
	RegisterMemoryFetch(reg, store)

	orch := NewOrchestrator(cfg, fs, rt, log, builder, comp, governor, llm, reg, opts.Emitter, logger)
	orch.SetLLMOptions(opts.LLMOpts)

	return &Session{
		Orchestrator: orch,
		Store:        store,
		Registry:     reg,
		Runtime:      rt,
		logger:       logger,
	}, nil
}

// Close flushes pending runtime state and releases the store and logger.
func (s *Session) Close() error {
	flushErr := s.Runtime.Flush()
	if err := s.Store.Close(); err != nil {
		return err
	}
	s.logger.Sync()
	return flushErr
}

package orchestration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wesamahakem/gauntlet/internal/cache"
	"github.com/wesamahakem/gauntlet/internal/hooks"
	"github.com/wesamahakem/gauntlet/internal/models"
)

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event.
type EventType string

const (
	EventMatrixStart    EventType = "matrix_start"
	EventMatrixComplete EventType = "matrix_complete"
	EventPairStart      EventType = "pair_start"
	EventPairComplete   EventType = "pair_complete"
	EventPairCached     EventType = "pair_cached"
)

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	EventType  EventType
	PairID     string
	PairNum    int
	TotalPairs int
	Status     models.Status
	DurationMs int64
	Details    map[string]any
}

// Engine drives the expanded matrix through the orchestrator, consulting the
// cache before each pair and archiving fresh results after.
type Engine struct {
	orch       *Orchestrator
	cache      *cache.Cache
	hooksCfg   hooks.Config
	hookRunner *hooks.Runner
	repeat     int
	noCache    bool
	verbose    bool

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCache enables result caching.
func WithCache(c *cache.Cache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithRepeat sets the worst-of-N repeat count.
func WithRepeat(n int) EngineOption {
	return func(e *Engine) {
		e.repeat = n
	}
}

// WithNoCache bypasses cache lookups. Stores still happen, so a bypassed run
// refreshes the cache rather than orphaning it.
func WithNoCache() EngineOption {
	return func(e *Engine) {
		e.noCache = true
	}
}

// WithHooks sets the lifecycle hook configuration.
func WithHooks(cfg hooks.Config) EngineOption {
	return func(e *Engine) {
		e.hooksCfg = cfg
	}
}

// WithVerbose enables verbose hook and progress output.
func WithVerbose(v bool) EngineOption {
	return func(e *Engine) {
		e.verbose = v
	}
}

// NewEngine creates a matrix engine.
func NewEngine(orch *Orchestrator, opts ...EngineOption) *Engine {
	e := &Engine{
		orch:      orch,
		repeat:    1,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(e)
	}
	e.hookRunner = &hooks.Runner{Verbose: e.verbose}
	return e
}

// OnProgress registers a progress listener.
func (e *Engine) OnProgress(listener ProgressListener) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

func (e *Engine) notifyProgress(event ProgressEvent) {
	e.progressMu.Lock()
	listeners := make([]ProgressListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes every pair in order and returns one result per pair. Pairs
// run strictly sequentially in the order given; a cache hit still occupies
// its slot in the output sequence.
func (e *Engine) Run(ctx context.Context, pairs []models.TestPair) ([]models.RunResult, error) {
	start := time.Now()

	defer func() {
		if len(e.hooksCfg.AfterRun) > 0 {
			if err := e.hookRunner.Execute(ctx, "after_run", e.hooksCfg.AfterRun); err != nil {
				fmt.Printf("[WARN] after_run hook error: %v\n", err)
			}
		}
	}()
	if len(e.hooksCfg.BeforeRun) > 0 {
		if err := e.hookRunner.Execute(ctx, "before_run", e.hooksCfg.BeforeRun); err != nil {
			return nil, fmt.Errorf("before_run hook failed: %w", err)
		}
	}

	e.notifyProgress(ProgressEvent{
		EventType:  EventMatrixStart,
		TotalPairs: len(pairs),
	})

	results := make([]models.RunResult, 0, len(pairs))
	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		e.notifyProgress(ProgressEvent{
			EventType:  EventPairStart,
			PairID:     pair.ID(),
			PairNum:    i + 1,
			TotalPairs: len(pairs),
		})

		result, cached := e.runPair(ctx, pair)
		results = append(results, result)

		eventType := EventPairComplete
		if cached {
			eventType = EventPairCached
		}
		e.notifyProgress(ProgressEvent{
			EventType:  eventType,
			PairID:     pair.ID(),
			PairNum:    i + 1,
			TotalPairs: len(pairs),
			Status:     result.Status,
			DurationMs: result.DurationMs,
			Details: map[string]any{
				"tool_calls": result.ToolCalls,
				"turns":      result.Turns,
			},
		})
	}

	e.notifyProgress(ProgressEvent{
		EventType:  EventMatrixComplete,
		DurationMs: time.Since(start).Milliseconds(),
	})

	return results, nil
}

// runPair resolves one pair through the cache or a fresh worst-of-N run.
func (e *Engine) runPair(ctx context.Context, pair models.TestPair) (models.RunResult, bool) {
	var key string
	var inputs models.KeyInputs
	if e.cache != nil {
		key, inputs = e.cache.ComputeKey(pair)
		if !e.noCache {
			if cached, ok := e.cache.Lookup(key); ok {
				return cached, true
			}
		}
	}

	e.runBeforePairHooks(ctx, pair)
	result, transcriptText := e.orch.RunTrials(ctx, pair, e.repeat)
	e.runAfterPairHooks(ctx, pair)

	if e.cache != nil {
		if err := e.cache.Store(key, inputs, result, transcriptText); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] failed to write cache for %s: %v\n", pair.ID(), err)
		} else if stored, ok := e.cache.Lookup(key); ok {
			result.TranscriptPath = stored.TranscriptPath
		}
	}

	return result, false
}

func (e *Engine) runBeforePairHooks(ctx context.Context, pair models.TestPair) {
	if len(e.hooksCfg.BeforePair) == 0 {
		return
	}
	if err := e.hookRunner.Execute(ctx, "before_pair", e.hooksCfg.BeforePair); err != nil {
		fmt.Printf("[WARN] before_pair hook error for %s: %v\n", pair.ID(), err)
	}
}

func (e *Engine) runAfterPairHooks(ctx context.Context, pair models.TestPair) {
	if len(e.hooksCfg.AfterPair) == 0 {
		return
	}
	if err := e.hookRunner.Execute(ctx, "after_pair", e.hooksCfg.AfterPair); err != nil {
		fmt.Printf("[WARN] after_pair hook error for %s: %v\n", pair.ID(), err)
	}
}

// Package graph provides the sequential workflow execution engine: a
// directed, loop-free graph of nodes with conditional routing,
// checkpoint-based persistence after every node, and a single designated
// interrupt point where execution suspends pending an externally supplied
// decision value.
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/invoiceflow/workflow-engine/graph/emit"
	"github.com/invoiceflow/workflow-engine/graph/store"
)

// Engine runs a registered graph of Node[S] to completion (or suspension)
// against a Store-backed checkpoint trail and an Event Bus, one thread at
// a time. There is no concurrent branch execution: the graph this engine
// targets has no fan-out and no cycles (see spec's topology), so every Run
// is a straight-line walk from StartAt to a Terminal node, possibly paused
// partway through at a Suspend node.
type Engine[S any] struct {
	reducer Reducer[S]
	store   store.Store[S]
	bus     *emit.Bus
	cfg     engineConfig

	emittersMu sync.RWMutex
	emitters   []emit.Emitter

	nodes map[string]Node[S]
	edges []Edge[S]
	start string

	// threadLocks serializes Run/Resume per thread id so a checkpoint
	// write from one call can never race a concurrent call for the same
	// thread.
	threadLocks sync.Map // map[string]*sync.Mutex
}

// New creates an Engine. store and bus must not be nil; reducer defines
// how a node's Delta merges into the running state.
func New[S any](reducer Reducer[S], st store.Store[S], bus *emit.Bus, opts ...Option) *Engine[S] {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[S]{
		reducer: reducer,
		store:   st,
		bus:     bus,
		cfg:     cfg,
		nodes:   make(map[string]Node[S]),
	}
}

// Add registers a node under id. Calling Add twice with the same id
// overwrites the previous registration; this is used by tests that swap a
// node for a stub.
func (e *Engine[S]) Add(id string, n Node[S]) {
	e.nodes[id] = n
}

// StartAt sets the node a fresh Run begins at.
func (e *Engine[S]) StartAt(id string) {
	e.start = id
}

// Connect adds a routing edge from -> to, traversed when when(state) is
// true (or unconditionally if when is nil). Edges are only consulted when
// a node's NodeResult.Route is the zero value (no explicit Route, Stop, or
// SuspendRoute); an explicit Route always wins.
func (e *Engine[S]) Connect(from, to string, when Predicate[S]) {
	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: when})
}

// AddEmitter wires a secondary observability sink (logs, traces) that
// receives a copy of every event alongside the Bus.
func (e *Engine[S]) AddEmitter(em emit.Emitter) {
	e.emittersMu.Lock()
	defer e.emittersMu.Unlock()
	e.emitters = append(e.emitters, em)
}

func (e *Engine[S]) emit(event emit.Event) {
	e.bus.Emit(event)
	e.emittersMu.RLock()
	defer e.emittersMu.RUnlock()
	for _, em := range e.emitters {
		em.Emit(event)
	}
}

func (e *Engine[S]) lockFor(threadID string) *sync.Mutex {
	l, _ := e.threadLocks.LoadOrStore(threadID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Run starts a fresh workflow for threadID at StartAt's node with the
// given initial state. It returns when the workflow reaches a Terminal
// node, suspends at a Suspend node (nil error, PendingInterrupt checkpoint
// saved), or a node/reducer error occurs.
func (e *Engine[S]) Run(ctx context.Context, threadID string, initial S) (S, error) {
	if e.start == "" {
		var zero S
		return zero, fmt.Errorf("engine: no start node configured")
	}
	lock := e.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()
	return e.loop(ctx, threadID, e.start, initial)
}

// Resume continues a previously suspended workflow for threadID. decision
// is merged into the checkpointed state via the reducer before re-entering
// the node the workflow was suspended at (HITL_DECISION in this domain),
// so the node can read the injected value back out of state. Resume
// returns ErrNotSuspended if the thread's latest checkpoint has no pending
// interrupt.
func (e *Engine[S]) Resume(ctx context.Context, threadID string, decision S) (S, error) {
	lock := e.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := e.store.LoadLatest(ctx, threadID)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("engine: load checkpoint: %w", err)
	}
	if !latest.PendingInterrupt {
		var zero S
		return zero, ErrNotSuspended
	}

	state := e.reducer(latest.State, decision)
	return e.loop(ctx, threadID, latest.PositionNode, state)
}

// loop walks the graph starting at nodeID with the given state, writing a
// checkpoint after every node, until a Terminal node, a Suspend node, or an
// error is reached.
func (e *Engine[S]) loop(ctx context.Context, threadID, nodeID string, state S) (S, error) {
	deadline := time.Time{}
	if e.cfg.runWallClockBudget > 0 {
		deadline = time.Now().Add(e.cfg.runWallClockBudget)
	}

	for step := 0; ; step++ {
		if e.cfg.maxSteps > 0 && step >= e.cfg.maxSteps {
			var zero S
			return zero, ErrMaxStepsExceeded
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			var zero S
			return zero, context.DeadlineExceeded
		}

		node, ok := e.nodes[nodeID]
		if !ok {
			var zero S
			return zero, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
		}

		nodeCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.defaultNodeTimeout > 0 {
			nodeCtx, cancel = context.WithTimeout(ctx, e.cfg.defaultNodeTimeout)
		}

		e.emit(emit.NewStageUpdate(threadID, nodeID, emit.StatusStarted, nil))
		start := time.Now()
		result := node.Run(nodeCtx, state)
		latency := time.Since(start)
		if cancel != nil {
			cancel()
		}

		if result.Err != nil {
			e.recordLatency(nodeID, latency, "failed")
			e.emit(emit.NewStageUpdate(threadID, nodeID, emit.StatusFailed, map[string]interface{}{
				"error": result.Err.Error(),
			}))
			var zero S
			return zero, result.Err
		}

		state = e.reducer(state, result.Delta)
		route := result.Route

		if route.Suspend {
			e.recordLatency(nodeID, latency, "completed")
			if _, err := e.store.SaveCheckpoint(ctx, store.CheckpointRecord[S]{
				ThreadID:         threadID,
				State:            state,
				PositionNode:     nodeID,
				PendingInterrupt: true,
			}); err != nil {
				var zero S
				return zero, fmt.Errorf("engine: save checkpoint: %w", err)
			}
			if e.cfg.metrics != nil {
				e.cfg.metrics.SetHITLPending(1)
			}
			return state, nil
		}

		e.recordLatency(nodeID, latency, "completed")
		e.emit(emit.NewStageUpdate(threadID, nodeID, emit.StatusCompleted, nil))

		if _, err := e.store.SaveCheckpoint(ctx, store.CheckpointRecord[S]{
			ThreadID:         threadID,
			State:            state,
			PositionNode:     nodeID,
			PendingInterrupt: false,
		}); err != nil {
			var zero S
			return zero, fmt.Errorf("engine: save checkpoint: %w", err)
		}

		if route.Terminal {
			e.emit(emit.NewStageUpdate(threadID, nodeID, emit.StatusWorkflowComplete, nil))
			if e.cfg.metrics != nil {
				e.cfg.metrics.IncrementWorkflowsCompleted(nodeID)
			}
			return state, nil
		}

		next := route.To
		if next == "" {
			var err error
			next, err = e.nextByEdge(nodeID, state)
			if err != nil {
				var zero S
				return zero, err
			}
		}
		nodeID = next
	}
}

func (e *Engine[S]) recordLatency(nodeID string, latency time.Duration, status string) {
	if e.cfg.metrics != nil {
		e.cfg.metrics.RecordStageLatency(nodeID, latency, status)
	}
}

func (e *Engine[S]) nextByEdge(from string, state S) (string, error) {
	for _, edge := range e.edges {
		if edge.From != from {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To, nil
		}
	}
	return "", fmt.Errorf("engine: no matching edge from %q", from)
}

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/invoiceflow/workflow-engine/graph/emit"
	"github.com/invoiceflow/workflow-engine/graph/store"
)

type testState struct {
	Counter int
	Label   string
	Done    bool
}

func reduceTestState(prev, delta testState) testState {
	if delta.Counter != 0 {
		prev.Counter = delta.Counter
	}
	if delta.Label != "" {
		prev.Label = delta.Label
	}
	if delta.Done {
		prev.Done = true
	}
	return prev
}

func newTestEngine(t *testing.T) (*Engine[testState], store.Store[testState]) {
	t.Helper()
	st := store.NewMemStore[testState]()
	bus := emit.NewBus()
	return New(reduceTestState, st, bus, WithMaxSteps(10)), st
}

func TestEngineRunsStraightLineToTerminal(t *testing.T) {
	e, st := newTestEngine(t)
	e.Add("A", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Delta: testState{Counter: 1}, Route: Goto("B")}
	}))
	e.Add("B", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Delta: testState{Counter: s.Counter + 1, Done: true}, Route: Stop()}
	}))
	e.StartAt("A")

	final, err := e.Run(context.Background(), "t1", testState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Counter != 2 || !final.Done {
		t.Fatalf("unexpected final state: %+v", final)
	}

	history, err := st.History(context.Background(), "t1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected a checkpoint per node (2), got %d", len(history))
	}
	if history[1].PendingInterrupt {
		t.Fatal("terminal checkpoint should not be pending interrupt")
	}
}

func TestEngineRoutesByEdgeWhenNoExplicitRoute(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Add("A", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Delta: testState{Counter: 5}}
	}))
	e.Add("HIGH", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Delta: testState{Label: "high"}, Route: Stop()}
	}))
	e.Add("LOW", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Delta: testState{Label: "low"}, Route: Stop()}
	}))
	e.StartAt("A")
	e.Connect("A", "HIGH", func(s testState) bool { return s.Counter >= 5 })
	e.Connect("A", "LOW", func(s testState) bool { return s.Counter < 5 })

	final, err := e.Run(context.Background(), "t2", testState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Label != "high" {
		t.Fatalf("expected edge routing to HIGH, got %+v", final)
	}
}

func TestEngineSuspendsAndResumes(t *testing.T) {
	e, st := newTestEngine(t)
	e.Add("INTAKE", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Delta: testState{Counter: 1}, Route: Goto("DECISION")}
	}))
	e.Add("DECISION", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		if s.Label == "" {
			return NodeResult[testState]{Route: SuspendRoute()}
		}
		return NodeResult[testState]{Delta: testState{Done: true}, Route: Stop()}
	}))
	e.StartAt("INTAKE")

	paused, err := e.Run(context.Background(), "t3", testState{})
	if err != nil {
		t.Fatalf("unexpected error on suspend: %v", err)
	}
	if paused.Done {
		t.Fatal("workflow should not be done while suspended")
	}

	latest, err := st.LoadLatest(context.Background(), "t3")
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if !latest.PendingInterrupt || latest.PositionNode != "DECISION" {
		t.Fatalf("expected pending interrupt at DECISION, got %+v", latest)
	}

	final, err := e.Resume(context.Background(), "t3", testState{Label: "ACCEPT"})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !final.Done {
		t.Fatalf("expected workflow done after resume, got %+v", final)
	}
}

func TestEngineResumeWithoutPendingInterruptFails(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Add("A", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Route: Stop()}
	}))
	e.StartAt("A")
	if _, err := e.Run(context.Background(), "t4", testState{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	_, err := e.Resume(context.Background(), "t4", testState{})
	if !errors.Is(err, ErrNotSuspended) {
		t.Fatalf("expected ErrNotSuspended, got %v", err)
	}
}

func TestEngineMaxStepsExceeded(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Add("LOOP", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Route: Goto("LOOP")}
	}))
	e.StartAt("LOOP")

	_, err := e.Run(context.Background(), "t5", testState{})
	if !errors.Is(err, ErrMaxStepsExceeded) {
		t.Fatalf("expected ErrMaxStepsExceeded, got %v", err)
	}
}

func TestEngineNodeErrorHaltsWorkflow(t *testing.T) {
	e, _ := newTestEngine(t)
	boom := errors.New("boom")
	e.Add("A", NodeFunc[testState](func(_ context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{Err: boom}
	}))
	e.StartAt("A")

	_, err := e.Run(context.Background(), "t6", testState{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

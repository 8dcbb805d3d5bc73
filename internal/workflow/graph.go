package workflow

import (
	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/graph/emit"
	"github.com/invoiceflow/workflow-engine/graph/store"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
	"github.com/invoiceflow/workflow-engine/internal/reviewqueue"
)

// Dependencies collects everything NewEngine needs to wire the twelve
// stages into a runnable graph.Engine[State].
type Dependencies struct {
	Orchestrator   *bigtool.Orchestrator
	Store          store.Store[State]
	Bus            *emit.Bus
	ReviewQueue    reviewqueue.Store
	MatchThreshold float64
	TolerancePct   float64
	ReviewURLFmt   string
	EngineOptions  []graph.Option
	Metrics        *DomainMetrics
}

// NewEngine builds the fixed twelve-stage invoice workflow graph described
// in spec.md §4.1: a single entry at INTAKE, a conditional split after
// MATCH_TWO_WAY, the HITL_DECISION interrupt point, and two terminal sinks
// (COMPLETE, MANUAL_HANDOFF).
func NewEngine(deps Dependencies) *graph.Engine[State] {
	eng := graph.New[State](Reduce, deps.Store, deps.Bus, deps.EngineOptions...)

	eng.Add("INTAKE", NewIntakeNode(deps.Orchestrator))
	eng.Add("UNDERSTAND", NewUnderstandNode(deps.Orchestrator))
	eng.Add("PREPARE", NewPrepareNode(deps.Orchestrator))
	eng.Add("RETRIEVE", NewRetrieveNode(deps.Orchestrator))
	matchNode := NewMatchTwoWayNode(deps.Orchestrator, deps.MatchThreshold, deps.TolerancePct)
	matchNode.Metrics = deps.Metrics
	eng.Add("MATCH_TWO_WAY", matchNode)
	eng.Add("CHECKPOINT_HITL", NewCheckpointHITLNode(deps.Orchestrator, deps.ReviewQueue, deps.ReviewURLFmt))
	eng.Add("HITL_DECISION", NewHITLDecisionNode())
	eng.Add("RECONCILE", NewReconcileNode(deps.Orchestrator))
	eng.Add("APPROVE", NewApproveNode(deps.Orchestrator))
	eng.Add("POSTING", NewPostingNode(deps.Orchestrator))
	eng.Add("NOTIFY", NewNotifyNode(deps.Orchestrator))
	eng.Add("COMPLETE", NewCompleteNode(deps.Orchestrator))
	eng.Add("MANUAL_HANDOFF", NewManualHandoffNode())

	eng.StartAt("INTAKE")

	eng.Connect("INTAKE", "UNDERSTAND", nil)
	eng.Connect("UNDERSTAND", "PREPARE", nil)
	eng.Connect("PREPARE", "RETRIEVE", nil)
	eng.Connect("RETRIEVE", "MATCH_TWO_WAY", nil)

	// shouldCheckpoint wins first: if it matches, stop checking the
	// complementary edge. Order here is significant because nextByEdge
	// takes the first matching edge.
	eng.Connect("MATCH_TWO_WAY", "CHECKPOINT_HITL", shouldCheckpoint(deps.MatchThreshold))
	eng.Connect("MATCH_TWO_WAY", "RECONCILE", nil)

	eng.Connect("CHECKPOINT_HITL", "HITL_DECISION", nil)

	eng.Connect("HITL_DECISION", "RECONCILE", afterHITL(DecisionAccept))
	eng.Connect("HITL_DECISION", "MANUAL_HANDOFF", nil)

	eng.Connect("RECONCILE", "APPROVE", nil)
	eng.Connect("APPROVE", "POSTING", nil)
	eng.Connect("POSTING", "NOTIFY", nil)
	eng.Connect("NOTIFY", "COMPLETE", nil)

	return eng
}

// shouldCheckpoint implements spec.md §4.1's routing predicate: a failed
// match result or a score below threshold routes to CHECKPOINT_HITL,
// matching exactly the threshold routes to RECONCILE.
func shouldCheckpoint(matchThreshold float64) graph.Predicate[State] {
	return func(s State) bool {
		return s.MatchResult == MatchResultFailed || s.MatchScore < matchThreshold
	}
}

// afterHITL implements spec.md §4.1's afterHITL predicate: ACCEPT routes to
// RECONCILE (rejoining the main path), anything else (REJECT) to
// MANUAL_HANDOFF.
func afterHITL(accept string) graph.Predicate[State] {
	return func(s State) bool {
		return s.HumanDecision == accept
	}
}

// StageOrder is the fixed, ordered stage catalog for GET /workflow/stages.
var StageOrder = []string{
	"INTAKE", "UNDERSTAND", "PREPARE", "RETRIEVE", "MATCH_TWO_WAY",
	"CHECKPOINT_HITL", "HITL_DECISION", "RECONCILE", "APPROVE",
	"POSTING", "NOTIFY", "COMPLETE", "MANUAL_HANDOFF",
}

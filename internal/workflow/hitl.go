package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
	"github.com/invoiceflow/workflow-engine/internal/reviewqueue"
)

// CheckpointHITLNode writes a Pending Review Record and computes the
// paused reason, then hands control to HITL_DECISION.
type CheckpointHITLNode struct {
	Orchestrator *bigtool.Orchestrator
	ReviewQueue  reviewqueue.Store
	ReviewURLFmt string // e.g. "/human-review/%s"
}

// NewCheckpointHITLNode creates a CheckpointHITLNode.
func NewCheckpointHITLNode(orch *bigtool.Orchestrator, rq reviewqueue.Store, reviewURLFmt string) *CheckpointHITLNode {
	if reviewURLFmt == "" {
		reviewURLFmt = "/human-review/%s"
	}
	return &CheckpointHITLNode{Orchestrator: orch, ReviewQueue: rq, ReviewURLFmt: reviewURLFmt}
}

// Run implements graph.Node for CHECKPOINT_HITL.
func (n *CheckpointHITLNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	call := n.Orchestrator.Execute(ctx, "checkpoint", map[string]interface{}{
		"thread_id": state.ThreadID,
	})

	checkpointID := uuid.NewString()
	reason := pausedReason(state)
	reviewURL := fmt.Sprintf(n.ReviewURLFmt, checkpointID)

	amount, _ := asFloat(state.InvoicePayload["amount"])
	currency, _ := state.InvoicePayload["currency"].(string)

	var evidence map[string]interface{}
	if state.MatchEvidence != nil {
		evidence = map[string]interface{}{
			"matched_fields":    state.MatchEvidence.MatchedFields,
			"mismatched_fields": state.MatchEvidence.MismatchedFields,
			"component_scores":  state.MatchEvidence.ComponentScores,
		}
	}

	rec := reviewqueue.Record{
		ReviewID:      uuid.NewString(),
		ThreadID:      state.ThreadID,
		CheckpointID:  checkpointID,
		InvoiceID:     state.RawID,
		VendorName:    fmt.Sprintf("%v", state.InvoicePayload["vendor_name"]),
		Amount:        amount,
		Currency:      currency,
		MatchScore:    state.MatchScore,
		MatchEvidence: evidence,
		ReasonForHold: reason,
		ReviewURL:     reviewURL,
		Status:        reviewqueue.StatusPending,
		CreatedAt:     time.Now(),
	}

	if err := n.ReviewQueue.Create(ctx, rec); err != nil {
		return graph.NodeResult[State]{
			Delta: State{
				Status:   StatusFailed,
				ErrorLog: []ErrorEntry{Errorf("CHECKPOINT_HITL", err.Error())},
			},
			Err: fmt.Errorf("CHECKPOINT_HITL: %w", err),
		}
	}

	delta := State{
		HITLCheckpointID: checkpointID,
		ReviewURL:        reviewURL,
		PausedReason:     reason,
		Status:           StatusPaused,
		CurrentStage:     "CHECKPOINT_HITL",
		BigtoolSelections: map[string]string{
			"CHECKPOINT_HITL": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("CHECKPOINT_HITL", "review_created", call.Tool, map[string]interface{}{
				"checkpoint_id": checkpointID,
				"reason":        reason,
				"mock":          call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func pausedReason(state State) string {
	if state.MatchResult == MatchResultFailed {
		return "match_failed"
	}
	return fmt.Sprintf("match_score_below_threshold: %.3f", state.MatchScore)
}

// HITLDecisionNode is the sole suspension point in the workflow. On first
// entry (no human_decision set yet) it suspends; on resume entry (a
// decision has been injected into state) it produces the routing delta.
type HITLDecisionNode struct{}

// NewHITLDecisionNode creates a HITLDecisionNode.
func NewHITLDecisionNode() *HITLDecisionNode {
	return &HITLDecisionNode{}
}

// Run implements graph.Node for HITL_DECISION.
func (n *HITLDecisionNode) Run(_ context.Context, state State) graph.NodeResult[State] {
	if state.HumanDecision == "" {
		return graph.NodeResult[State]{
			Delta: State{CurrentStage: "HITL_DECISION"},
			Route: graph.SuspendRoute(),
		}
	}

	delta := State{
		CurrentStage: "HITL_DECISION",
		AuditLog: []AuditEntry{
			Audit("HITL_DECISION", "decided", state.ReviewerID, map[string]interface{}{
				"decision": state.HumanDecision,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

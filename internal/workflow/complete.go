package workflow

import (
	"context"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// CompleteNode assembles the terminal payload for a successfully processed
// invoice and persists the audit trail.
type CompleteNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewCompleteNode creates a CompleteNode.
func NewCompleteNode(orch *bigtool.Orchestrator) *CompleteNode {
	return &CompleteNode{Orchestrator: orch}
}

// Run implements graph.Node for COMPLETE.
func (n *CompleteNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	call := n.Orchestrator.Execute(ctx, "audit", map[string]interface{}{
		"thread_id": state.ThreadID,
	})

	payload := map[string]interface{}{
		"invoice_id": state.RawID,
		"thread_id":  state.ThreadID,
		"approval": map[string]interface{}{
			"status":      state.ApprovalStatus,
			"approver_id": state.ApproverID,
		},
		"erp": map[string]interface{}{
			"transaction_id": state.ERPTxnID,
			"posted":         state.Posted,
			"payment_id":     state.ScheduledPaymentID,
		},
		"processing": map[string]interface{}{
			"required_hitl": state.HITLCheckpointID != "",
			"match_score":   state.MatchScore,
		},
		"hitl_decision": state.HumanDecision,
		"notify_status": state.NotifyStatus,
	}

	delta := State{
		FinalPayload: payload,
		Status:       StatusCompleted,
		CurrentStage: "COMPLETE",
		BigtoolSelections: map[string]string{
			"COMPLETE": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("COMPLETE", "persisted", call.Tool, map[string]interface{}{
				"mock": call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Stop()}
}

// ManualHandoffNode assembles the rejection payload when a reviewer
// rejects the HITL decision.
type ManualHandoffNode struct{}

// NewManualHandoffNode creates a ManualHandoffNode.
func NewManualHandoffNode() *ManualHandoffNode {
	return &ManualHandoffNode{}
}

// Run implements graph.Node for MANUAL_HANDOFF.
func (n *ManualHandoffNode) Run(_ context.Context, state State) graph.NodeResult[State] {
	payload := map[string]interface{}{
		"invoice_id":    state.RawID,
		"thread_id":     state.ThreadID,
		"reviewer_id":   state.ReviewerID,
		"hitl_decision": state.HumanDecision,
		"reason":        state.PausedReason,
	}

	delta := State{
		FinalPayload: payload,
		Status:       StatusRequiresManualHandling,
		CurrentStage: "MANUAL_HANDOFF",
		AuditLog: []AuditEntry{
			Audit("MANUAL_HANDOFF", "rejected", state.ReviewerID, map[string]interface{}{
				"reviewer_notes": state.ReviewerNotes,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta, Route: graph.Stop()}
}

package workflow

import (
	"context"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// Approval policy thresholds, per spec.md's APPROVE contract.
const (
	autoApproveThreshold    = 10_000.0
	managerApproveThreshold = 50_000.0
	riskEscalationThreshold = 0.5
)

// Approval outcomes.
const (
	ApprovalAutoApproved       = "AUTO_APPROVED"
	ApprovalApproved           = "APPROVED"
	ApprovalApprovedWithReview = "APPROVED_WITH_REVIEW"
)

// Approver identities assigned by the policy.
const (
	ApproverSystem        = "SYSTEM"
	ApproverManager       = "MGR-001"
	ApproverExecutive     = "EXEC-001"
	ApproverManagerReview = "MANAGER-REVIEW"
)

// ApproveNode applies the amount/risk policy to decide approval status and
// the responsible approver.
type ApproveNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewApproveNode creates an ApproveNode.
func NewApproveNode(orch *bigtool.Orchestrator) *ApproveNode {
	return &ApproveNode{Orchestrator: orch}
}

// Run implements graph.Node for APPROVE.
func (n *ApproveNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	amount, _ := asFloat(state.InvoicePayload["amount"])

	var riskScore float64
	if state.VendorProfile != nil {
		riskScore = state.VendorProfile.RiskScore
	}

	call := n.Orchestrator.Execute(ctx, "policy", map[string]interface{}{
		"amount":     amount,
		"risk_score": riskScore,
	})

	status, approver := decidePolicy(amount, riskScore)

	delta := State{
		ApprovalStatus: status,
		ApproverID:     approver,
		CurrentStage:   "APPROVE",
		BigtoolSelections: map[string]string{
			"APPROVE": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("APPROVE", "decided", call.Tool, map[string]interface{}{
				"status":   status,
				"approver": approver,
				"mock":     call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func decidePolicy(amount, riskScore float64) (status, approver string) {
	if riskScore > riskEscalationThreshold {
		return ApprovalApprovedWithReview, ApproverManagerReview
	}
	if amount <= autoApproveThreshold {
		return ApprovalAutoApproved, ApproverSystem
	}
	if amount <= managerApproveThreshold {
		return ApprovalApproved, ApproverManager
	}
	return ApprovalApproved, ApproverExecutive
}

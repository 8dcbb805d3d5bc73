package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// PostingNode posts the invoice to the ERP system and schedules payment.
type PostingNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewPostingNode creates a PostingNode.
func NewPostingNode(orch *bigtool.Orchestrator) *PostingNode {
	return &PostingNode{Orchestrator: orch}
}

// Run implements graph.Node for POSTING.
func (n *PostingNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	amount, _ := asFloat(state.InvoicePayload["amount"])

	call := n.Orchestrator.Execute(ctx, "erp_connector", map[string]interface{}{
		"thread_id": state.ThreadID,
		"amount":    amount,
		"approver":  state.ApproverID,
	})

	txnID := transactionIDFromResult(call.Result)
	paymentID := uuid.NewString()

	delta := State{
		Posted:             true,
		ERPTxnID:           txnID,
		ScheduledPaymentID: paymentID,
		CurrentStage:       "POSTING",
		BigtoolSelections: map[string]string{
			"POSTING": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("POSTING", "posted", call.Tool, map[string]interface{}{
				"erp_txn_id": txnID,
				"mock":       call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func transactionIDFromResult(result map[string]interface{}) string {
	if result == nil {
		return ""
	}
	if s, ok := result["transaction_id"].(string); ok && s != "" {
		return s
	}
	return uuid.NewString()
}

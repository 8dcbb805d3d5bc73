package workflow

import (
	"context"
	"fmt"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// NotifyNode emails the vendor and finance team that processing is
// complete.
type NotifyNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewNotifyNode creates a NotifyNode.
func NewNotifyNode(orch *bigtool.Orchestrator) *NotifyNode {
	return &NotifyNode{Orchestrator: orch}
}

// Run implements graph.Node for NOTIFY.
func (n *NotifyNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	vendorName, _ := state.InvoicePayload["vendor_name"].(string)

	call := n.Orchestrator.Execute(ctx, "email", map[string]interface{}{
		"thread_id":   state.ThreadID,
		"vendor_name": vendorName,
		"erp_txn_id":  state.ERPTxnID,
	})

	notified := []string{vendorName, "finance"}

	status := "sent"
	if !call.Success {
		status = "failed"
	}

	delta := State{
		NotifyStatus:    status,
		NotifiedParties: notified,
		CurrentStage:    "NOTIFY",
		BigtoolSelections: map[string]string{
			"NOTIFY": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("NOTIFY", "notified", call.Tool, map[string]interface{}{
				"parties": notified,
				"status":  status,
				"mock":    call.Mock,
			}),
		},
	}
	if !call.Success {
		delta.ErrorLog = []ErrorEntry{Errorf("NOTIFY", fmt.Sprintf("notification failed: %s", call.Error))}
	}
	return graph.NodeResult[State]{Delta: delta}
}

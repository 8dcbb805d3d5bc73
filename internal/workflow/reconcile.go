package workflow

import (
	"context"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// Chart-of-accounts codes used by RECONCILE's fixed debit/credit pair.
const (
	AccountExpenses        = "6000-Expenses"
	AccountAccountsPayable = "2100-Accounts Payable"
)

// ReconcileNode builds the exactly-two-entry debit/credit pair for the
// invoice amount.
type ReconcileNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewReconcileNode creates a ReconcileNode.
func NewReconcileNode(orch *bigtool.Orchestrator) *ReconcileNode {
	return &ReconcileNode{Orchestrator: orch}
}

// Run implements graph.Node for RECONCILE.
func (n *ReconcileNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	amount, _ := asFloat(state.InvoicePayload["amount"])

	call := n.Orchestrator.Execute(ctx, "accounting", map[string]interface{}{
		"thread_id": state.ThreadID,
		"amount":    amount,
	})

	entries := []AccountingEntry{
		{Account: AccountExpenses, Type: "DEBIT", Amount: amount},
		{Account: AccountAccountsPayable, Type: "CREDIT", Amount: amount},
	}

	report := map[string]interface{}{
		"debit_total":  amount,
		"credit_total": amount,
		"balanced":     true,
	}

	delta := State{
		AccountingEntries:    entries,
		ReconciliationReport: report,
		CurrentStage:         "RECONCILE",
		BigtoolSelections: map[string]string{
			"RECONCILE": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("RECONCILE", "posted_entries", call.Tool, map[string]interface{}{
				"amount": amount,
				"mock":   call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

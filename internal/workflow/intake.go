package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// IntakeNode validates the submitted invoice payload, assigns a raw_id, and
// records the ingest timestamp.
type IntakeNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewIntakeNode creates an IntakeNode.
func NewIntakeNode(orch *bigtool.Orchestrator) *IntakeNode {
	return &IntakeNode{Orchestrator: orch}
}

// Run implements graph.Node for INTAKE.
func (n *IntakeNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	if err := validateInvoicePayload(state.InvoicePayload); err != nil {
		return graph.NodeResult[State]{
			Delta: State{
				Status:   StatusFailed,
				ErrorLog: []ErrorEntry{Errorf("INTAKE", err.Error())},
			},
			Err: fmt.Errorf("INTAKE: %w", err),
		}
	}

	call := n.Orchestrator.Execute(ctx, "storage", map[string]interface{}{
		"invoice_id": state.InvoicePayload["invoice_id"],
	})

	rawID := uuid.NewString()
	delta := State{
		RawID:        rawID,
		IngestTS:     time.Now(),
		CurrentStage: "INTAKE",
		Status:       StatusRunning,
		BigtoolSelections: map[string]string{
			"INTAKE": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("INTAKE", "validated", call.Tool, map[string]interface{}{
				"raw_id": rawID,
				"mock":   call.Mock,
			}),
		},
	}

	return graph.NodeResult[State]{Delta: delta}
}

// validateInvoicePayload checks the minimal schema spec.md §6.3 requires:
// invoice_id, vendor_name, amount > 0, currency of length 3, at least one
// line item.
func validateInvoicePayload(payload map[string]interface{}) error {
	if payload == nil {
		return fmt.Errorf("invoice payload is empty")
	}
	if s, _ := payload["invoice_id"].(string); s == "" {
		return fmt.Errorf("invoice_id is required")
	}
	if s, _ := payload["vendor_name"].(string); s == "" {
		return fmt.Errorf("vendor_name is required")
	}
	amount, ok := asFloat(payload["amount"])
	if !ok || amount <= 0 {
		return fmt.Errorf("amount must be a positive number")
	}
	currency, _ := payload["currency"].(string)
	if len(currency) != 3 {
		return fmt.Errorf("currency must be a 3-character code")
	}
	items, _ := payload["line_items"].([]interface{})
	if len(items) == 0 {
		return fmt.Errorf("line_items must have at least one entry")
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

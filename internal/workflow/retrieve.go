package workflow

import (
	"context"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// RetrieveNode fetches matching purchase orders, goods-receipt notes, and
// vendor history from the ERP connector.
type RetrieveNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewRetrieveNode creates a RetrieveNode.
func NewRetrieveNode(orch *bigtool.Orchestrator) *RetrieveNode {
	return &RetrieveNode{Orchestrator: orch}
}

// Run implements graph.Node for RETRIEVE.
func (n *RetrieveNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	var detectedPO string
	if state.ParsedInvoice != nil && len(state.ParsedInvoice.DetectedPOs) > 0 {
		detectedPO = state.ParsedInvoice.DetectedPOs[0]
	}

	call := n.Orchestrator.Execute(ctx, "erp_connector", map[string]interface{}{
		"po_number":   detectedPO,
		"vendor_name": state.InvoicePayload["vendor_name"],
	})

	pos := purchaseOrdersFromResult(call.Result, state)

	delta := State{
		MatchedPOs:   pos,
		MatchedGRNs:  grnsFromResult(call.Result),
		History:      historyFromResult(call.Result),
		CurrentStage: "RETRIEVE",
		BigtoolSelections: map[string]string{
			"RETRIEVE": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("RETRIEVE", "fetched", call.Tool, map[string]interface{}{
				"matched_pos": len(pos),
				"mock":        call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

// purchaseOrdersFromResult extracts POs from the tool result. When the
// capability server returns none (e.g. a mock-fallback response with no
// domain data), it falls back to echoing the submitted invoice as its own
// PO so that a submission with no real PO on file still produces a
// comparable match baseline, matching how the original's mock ERP server
// echoes the invoice when no PO exists for a thread.
func purchaseOrdersFromResult(result map[string]interface{}, state State) []PurchaseOrder {
	if result != nil {
		if raw, ok := result["purchase_orders"].([]interface{}); ok && len(raw) > 0 {
			out := make([]PurchaseOrder, 0, len(raw))
			for _, v := range raw {
				m, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				poNumber, _ := m["po_number"].(string)
				total, _ := asFloat(m["total_amount"])
				out = append(out, PurchaseOrder{
					PONumber:    poNumber,
					TotalAmount: total,
					LineItems:   parseLineItems(m["line_items"]),
				})
			}
			if len(out) > 0 {
				return out
			}
		}
	}

	amount, _ := asFloat(state.InvoicePayload["amount"])
	var lineItems []LineItem
	if state.ParsedInvoice != nil {
		lineItems = state.ParsedInvoice.LineItems
	}
	return []PurchaseOrder{{
		PONumber:    "ECHO-" + state.RawID,
		TotalAmount: amount,
		LineItems:   lineItems,
	}}
}

func grnsFromResult(result map[string]interface{}) []map[string]interface{} {
	if result == nil {
		return nil
	}
	raw, _ := result["grns"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func historyFromResult(result map[string]interface{}) []map[string]interface{} {
	if result == nil {
		return nil
	}
	raw, _ := result["history"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

package workflow

import (
	"context"
	"fmt"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// UnderstandNode runs OCR over the invoice attachments for the document
// text and takes the line items from the structured payload; line items
// are never extracted from the attachments themselves.
type UnderstandNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewUnderstandNode creates an UnderstandNode.
func NewUnderstandNode(orch *bigtool.Orchestrator) *UnderstandNode {
	return &UnderstandNode{Orchestrator: orch}
}

// Run implements graph.Node for UNDERSTAND.
func (n *UnderstandNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	ocrCall := n.Orchestrator.ExecuteDescribed(ctx, "ocr",
		"extract line items and dates from a scanned vendor invoice with dense tabular text",
		map[string]interface{}{
			"attachments": state.Attachments,
			"invoice_id":  state.InvoicePayload["invoice_id"],
		})

	parseCall := n.Orchestrator.Execute(ctx, "parsing", map[string]interface{}{
		"raw_id": state.RawID,
	})

	lineItems := parseLineItems(state.InvoicePayload["line_items"])
	currency, _ := state.InvoicePayload["currency"].(string)

	parsed := &ParsedInvoice{
		Text:        textFromResult(ocrCall.Result),
		LineItems:   lineItems,
		DetectedPOs: detectedPOs(parseCall.Result),
		Currency:    currency,
		ParsedDates: map[string]string{
			"invoice_date": fmt.Sprintf("%v", state.InvoicePayload["invoice_date"]),
			"due_date":     fmt.Sprintf("%v", state.InvoicePayload["due_date"]),
		},
	}

	delta := State{
		ParsedInvoice: parsed,
		CurrentStage:  "UNDERSTAND",
		BigtoolSelections: map[string]string{
			"UNDERSTAND": ocrCall.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("UNDERSTAND", "parsed", ocrCall.Tool, map[string]interface{}{
				"line_items": len(lineItems),
				"mock":       ocrCall.Mock || parseCall.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func parseLineItems(raw interface{}) []LineItem {
	items, _ := raw.([]interface{})
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		desc, _ := m["desc"].(string)
		qty, _ := asFloat(m["qty"])
		unitPrice, _ := asFloat(m["unit_price"])
		total, _ := asFloat(m["total"])
		out = append(out, LineItem{Desc: desc, Qty: qty, UnitPrice: unitPrice, Total: total})
	}
	return out
}

func textFromResult(result map[string]interface{}) string {
	if result == nil {
		return ""
	}
	if s, ok := result["text"].(string); ok {
		return s
	}
	return ""
}

func detectedPOs(result map[string]interface{}) []string {
	if result == nil {
		return nil
	}
	raw, _ := result["detected_pos"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

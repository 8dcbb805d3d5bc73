package workflow

import (
	"context"
	"math"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// MatchTwoWayNode computes the weighted two-way match score between the
// invoice and the first retrieved purchase order.
type MatchTwoWayNode struct {
	Orchestrator   *bigtool.Orchestrator
	MatchThreshold float64
	TolerancePct   float64
	Metrics        *DomainMetrics // optional; nil disables the match_score histogram
}

// NewMatchTwoWayNode creates a MatchTwoWayNode.
func NewMatchTwoWayNode(orch *bigtool.Orchestrator, matchThreshold, tolerancePct float64) *MatchTwoWayNode {
	return &MatchTwoWayNode{Orchestrator: orch, MatchThreshold: matchThreshold, TolerancePct: tolerancePct}
}

// Run implements graph.Node for MATCH_TWO_WAY.
func (n *MatchTwoWayNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	call := n.Orchestrator.Execute(ctx, "matching", map[string]interface{}{
		"raw_id": state.RawID,
	})

	invoiceAmount, _ := asFloat(state.InvoicePayload["amount"])
	var invoiceLineItems []LineItem
	if state.ParsedInvoice != nil {
		invoiceLineItems = state.ParsedInvoice.LineItems
	}

	var po PurchaseOrder
	if len(state.MatchedPOs) > 0 {
		po = state.MatchedPOs[0]
	}

	tolerance := state.TolerancePct
	if tolerance == 0 {
		tolerance = n.TolerancePct
	}

	amountScore := scoreAmount(invoiceAmount, po.TotalAmount, tolerance)
	qtyScore := scoreQuantity(invoiceLineItems, po.LineItems, tolerance)
	priceScore := scorePrice(invoiceLineItems, po.LineItems, tolerance)

	final := round3(amountScore*0.40 + qtyScore*0.35 + priceScore*0.25)
	n.Metrics.Observe(final)

	result := MatchResultFailed
	if final >= n.MatchThreshold {
		result = MatchResultMatched
	}

	evidence := &MatchEvidence{
		ComponentScores: map[string]float64{
			"amount":   amountScore,
			"quantity": qtyScore,
			"price":    priceScore,
		},
	}
	if amountScore >= 1.0 {
		evidence.MatchedFields = append(evidence.MatchedFields, "amount")
	} else {
		evidence.MismatchedFields = append(evidence.MismatchedFields, "amount")
	}

	delta := State{
		MatchScore:    final,
		MatchResult:   result,
		TolerancePct:  tolerance,
		MatchEvidence: evidence,
		CurrentStage:  "MATCH_TWO_WAY",
		BigtoolSelections: map[string]string{
			"MATCH_TWO_WAY": call.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("MATCH_TWO_WAY", "scored", call.Tool, map[string]interface{}{
				"match_score":  final,
				"match_result": result,
				"mock":         call.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func scoreAmount(invoiceAmount, poTotal, tolerancePct float64) float64 {
	if poTotal <= 0 {
		return 0.0
	}
	d := math.Abs(invoiceAmount-poTotal) / poTotal * 100
	switch {
	case d <= tolerancePct:
		return 1.0
	case d <= 2*tolerancePct:
		return 0.5
	default:
		return 0.0
	}
}

func scoreQuantity(invoice, po []LineItem, tolerancePct float64) float64 {
	n := len(invoice)
	if len(po) > n {
		n = len(po)
	}
	if len(invoice) == 0 || len(po) == 0 {
		if len(invoice) == len(po) {
			return 0.8
		}
		return 0.0
	}

	matches := 0
	for i := 0; i < len(invoice); i++ {
		var poQty float64
		if i < len(po) {
			poQty = po[i].Qty
		}
		var qDelta float64
		if poQty <= 0 {
			qDelta = 100
		} else {
			qDelta = math.Abs(invoice[i].Qty-poQty) / poQty * 100
		}
		if qDelta <= tolerancePct {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

func scorePrice(invoice, po []LineItem, tolerancePct float64) float64 {
	if len(invoice) == 0 || len(po) == 0 {
		return 0.5
	}
	n := len(invoice)
	if len(po) > n {
		n = len(po)
	}
	matches := 0
	for i := 0; i < len(invoice); i++ {
		var poPrice float64
		if i < len(po) {
			poPrice = po[i].UnitPrice
		}
		var pDelta float64
		if poPrice <= 0 {
			pDelta = 100
		} else {
			pDelta = math.Abs(invoice[i].UnitPrice-poPrice) / poPrice * 100
		}
		if pDelta <= tolerancePct {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

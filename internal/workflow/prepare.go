package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
)

// PrepareNode normalizes the vendor name, enriches the vendor profile, and
// computes flags (e.g. high-risk vendor) used by downstream policy.
type PrepareNode struct {
	Orchestrator *bigtool.Orchestrator
}

// NewPrepareNode creates a PrepareNode.
func NewPrepareNode(orch *bigtool.Orchestrator) *PrepareNode {
	return &PrepareNode{Orchestrator: orch}
}

// Run implements graph.Node for PREPARE.
func (n *PrepareNode) Run(ctx context.Context, state State) graph.NodeResult[State] {
	vendorName, _ := state.InvoicePayload["vendor_name"].(string)
	normalizeCall := n.Orchestrator.Execute(ctx, "normalize", map[string]interface{}{
		"vendor_name": vendorName,
	})
	enrichCall := n.Orchestrator.Execute(ctx, "enrichment", map[string]interface{}{
		"vendor_name": vendorName,
		"tax_id":      state.InvoicePayload["vendor_tax_id"],
	})

	normalizedName := strings.ToUpper(strings.TrimSpace(vendorName))
	riskScore := riskScoreFromResult(enrichCall.Result)

	profile := &VendorProfile{
		NormalizedName: normalizedName,
		TaxID:          fmt.Sprintf("%v", state.InvoicePayload["vendor_tax_id"]),
		EnrichmentMeta: enrichCall.Result,
		RiskScore:      riskScore,
	}

	var flags []string
	if riskScore > 0.5 {
		flags = append(flags, "high_risk_vendor")
	}

	delta := State{
		VendorProfile: profile,
		NormalizedInvoice: map[string]interface{}{
			"vendor_name": normalizedName,
		},
		Flags:        flags,
		CurrentStage: "PREPARE",
		BigtoolSelections: map[string]string{
			"PREPARE": enrichCall.Tool,
		},
		AuditLog: []AuditEntry{
			Audit("PREPARE", "enriched", enrichCall.Tool, map[string]interface{}{
				"risk_score": riskScore,
				"mock":       normalizeCall.Mock || enrichCall.Mock,
			}),
		},
	}
	return graph.NodeResult[State]{Delta: delta}
}

func riskScoreFromResult(result map[string]interface{}) float64 {
	if result == nil {
		return 0
	}
	if v, ok := asFloat(result["risk_score"]); ok {
		return v
	}
	return 0
}

package workflow

import (
	"context"
	"testing"

	"github.com/invoiceflow/workflow-engine/graph"
)

func baseIntakeState() State {
	return State{
		ThreadID: "t1",
		RawID:    "INV-1",
		InvoicePayload: map[string]interface{}{
			"invoice_id":    "INV-1",
			"vendor_name":   "Acme Co",
			"vendor_tax_id": "TAX-1",
			"invoice_date":  "2026-01-01",
			"due_date":      "2026-02-01",
			"amount":        100.0,
			"currency":      "USD",
			"line_items": []interface{}{
				map[string]interface{}{"desc": "widget", "qty": 1.0, "unit_price": 100.0, "total": 100.0},
			},
		},
	}
}

func TestUnderstandNodeParsesLineItemsFromPayload(t *testing.T) {
	n := NewUnderstandNode(newMockOrchestrator())
	res := n.Run(context.Background(), baseIntakeState())

	if res.Delta.ParsedInvoice == nil {
		t.Fatalf("expected ParsedInvoice to be set")
	}
	if len(res.Delta.ParsedInvoice.LineItems) != 1 {
		t.Fatalf("expected one parsed line item, got %d", len(res.Delta.ParsedInvoice.LineItems))
	}
	if res.Delta.ParsedInvoice.Currency != "USD" {
		t.Fatalf("expected currency USD, got %q", res.Delta.ParsedInvoice.Currency)
	}
	if res.Delta.CurrentStage != "UNDERSTAND" {
		t.Fatalf("expected CurrentStage UNDERSTAND, got %q", res.Delta.CurrentStage)
	}
}

func TestPrepareNodeNormalizesVendorName(t *testing.T) {
	n := NewPrepareNode(newMockOrchestrator())
	state := baseIntakeState()
	res := n.Run(context.Background(), state)

	if res.Delta.VendorProfile == nil {
		t.Fatalf("expected VendorProfile to be set")
	}
	if res.Delta.VendorProfile.NormalizedName != "ACME CO" {
		t.Fatalf("expected normalized vendor name, got %q", res.Delta.VendorProfile.NormalizedName)
	}
}

func TestRetrieveNodeFallsBackToEchoPOWhenNoneOnFile(t *testing.T) {
	n := NewRetrieveNode(newMockOrchestrator())
	state := baseIntakeState()
	res := n.Run(context.Background(), state)

	if len(res.Delta.MatchedPOs) != 1 {
		t.Fatalf("expected one echoed PO when the mock ERP has none on file, got %d", len(res.Delta.MatchedPOs))
	}
	if res.Delta.MatchedPOs[0].TotalAmount != 100.0 {
		t.Fatalf("expected the echoed PO to match the invoice amount, got %v", res.Delta.MatchedPOs[0].TotalAmount)
	}
}

func TestReconcileNodeProducesBalancedDebitCreditPair(t *testing.T) {
	n := NewReconcileNode(newMockOrchestrator())
	state := baseIntakeState()
	res := n.Run(context.Background(), state)

	if len(res.Delta.AccountingEntries) != 2 {
		t.Fatalf("expected exactly two accounting entries, got %d", len(res.Delta.AccountingEntries))
	}
	debit, credit := res.Delta.AccountingEntries[0], res.Delta.AccountingEntries[1]
	if debit.Type != "DEBIT" || credit.Type != "CREDIT" {
		t.Fatalf("expected DEBIT then CREDIT, got %q then %q", debit.Type, credit.Type)
	}
	if debit.Amount != credit.Amount {
		t.Fatalf("expected a balanced pair, got debit=%v credit=%v", debit.Amount, credit.Amount)
	}
	if res.Delta.ReconciliationReport["balanced"] != true {
		t.Fatalf("expected reconciliation report to report balanced, got %+v", res.Delta.ReconciliationReport)
	}
}

func TestPostingNodeMarksPostedAndAssignsIDs(t *testing.T) {
	n := NewPostingNode(newMockOrchestrator())
	state := baseIntakeState()
	res := n.Run(context.Background(), state)

	if !res.Delta.Posted {
		t.Fatalf("expected Posted to be true")
	}
	if res.Delta.ERPTxnID == "" {
		t.Fatalf("expected a non-empty ERP transaction id")
	}
	if res.Delta.ScheduledPaymentID == "" {
		t.Fatalf("expected a non-empty scheduled payment id")
	}
}

func TestNotifyNodeReportsSentOnMockFallback(t *testing.T) {
	n := NewNotifyNode(newMockOrchestrator())
	state := baseIntakeState()
	res := n.Run(context.Background(), state)

	if res.Delta.NotifyStatus != "sent" {
		t.Fatalf("expected notify status sent on a mock-fallback success, got %q", res.Delta.NotifyStatus)
	}
	if len(res.Delta.NotifiedParties) != 2 {
		t.Fatalf("expected vendor and finance notified, got %+v", res.Delta.NotifiedParties)
	}
}

func TestCompleteNodeAssemblesFinalPayloadAndStops(t *testing.T) {
	n := NewCompleteNode(newMockOrchestrator())
	state := baseIntakeState()
	state.ApprovalStatus = "AUTO_APPROVED"
	state.ERPTxnID = "txn-1"
	state.Posted = true

	res := n.Run(context.Background(), state)

	if res.Delta.Status != StatusCompleted {
		t.Fatalf("expected status COMPLETED, got %q", res.Delta.Status)
	}
	if res.Route != graph.Stop() {
		t.Fatalf("expected COMPLETE to terminate the run")
	}
	payload, ok := res.Delta.FinalPayload["approval"].(map[string]interface{})
	if !ok || payload["status"] != "AUTO_APPROVED" {
		t.Fatalf("expected the approval status to flow into the final payload, got %+v", res.Delta.FinalPayload)
	}
}

func TestManualHandoffNodeAssemblesRejectionPayloadAndStops(t *testing.T) {
	n := NewManualHandoffNode()
	state := baseIntakeState()
	state.HumanDecision = DecisionReject
	state.PausedReason = "match_failed"
	state.ReviewerID = "r1"

	res := n.Run(context.Background(), state)

	if res.Delta.Status != StatusRequiresManualHandling {
		t.Fatalf("expected status REQUIRES_MANUAL_HANDLING, got %q", res.Delta.Status)
	}
	if res.Route != graph.Stop() {
		t.Fatalf("expected MANUAL_HANDOFF to terminate the run")
	}
}

package workflow

import (
	"context"
	"testing"
)

func baseMatchState(invoiceAmount, poAmount float64) State {
	return State{
		ThreadID: "t1",
		RawID:    "raw-1",
		InvoicePayload: map[string]interface{}{
			"amount": invoiceAmount,
		},
		ParsedInvoice: &ParsedInvoice{
			LineItems: []LineItem{{Desc: "widget", Qty: 10, UnitPrice: 5, Total: 50}},
		},
		MatchedPOs: []PurchaseOrder{{
			PONumber:    "PO-1",
			TotalAmount: poAmount,
			LineItems:   []LineItem{{Desc: "widget", Qty: 10, UnitPrice: 5, Total: 50}},
		}},
		TolerancePct: 2,
	}
}

func TestMatchTwoWayExactMatchScoresOne(t *testing.T) {
	n := NewMatchTwoWayNode(newMockOrchestrator(), 0.85, 2)
	res := n.Run(context.Background(), baseMatchState(500, 500))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Delta.MatchScore != 1.0 {
		t.Fatalf("expected perfect match score, got %v", res.Delta.MatchScore)
	}
	if res.Delta.MatchResult != MatchResultMatched {
		t.Fatalf("expected MATCHED, got %v", res.Delta.MatchResult)
	}
}

func TestMatchTwoWayScoreEqualToThresholdMatches(t *testing.T) {
	// A score that lands exactly on the threshold must count as MATCHED,
	// per spec: result is MATCHED iff final >= match_threshold.
	n := NewMatchTwoWayNode(newMockOrchestrator(), 1.0, 2)
	res := n.Run(context.Background(), baseMatchState(500, 500))
	if res.Delta.MatchScore != 1.0 {
		t.Fatalf("expected score 1.0, got %v", res.Delta.MatchScore)
	}
	if res.Delta.MatchResult != MatchResultMatched {
		t.Fatalf("expected MATCHED when score equals threshold, got %v", res.Delta.MatchResult)
	}
}

func TestMatchTwoWayEmptyLineItemsOnBothSidesScoresNeutral(t *testing.T) {
	n := NewMatchTwoWayNode(newMockOrchestrator(), 0.85, 2)
	state := baseMatchState(500, 500)
	state.ParsedInvoice.LineItems = nil
	state.MatchedPOs[0].LineItems = nil

	res := n.Run(context.Background(), state)
	// amount=1.0*.40 + qty(both empty)=0.8*.35 + price(both empty)=0.5*.25 = 0.805
	want := round3(1.0*0.40 + 0.8*0.35 + 0.5*0.25)
	if res.Delta.MatchScore != want {
		t.Fatalf("expected score %v, got %v", want, res.Delta.MatchScore)
	}
}

func TestMatchTwoWayMissingPOScoresZeroAmount(t *testing.T) {
	n := NewMatchTwoWayNode(newMockOrchestrator(), 0.85, 2)
	state := baseMatchState(500, 0)
	state.MatchedPOs = nil

	res := n.Run(context.Background(), state)
	if res.Delta.MatchResult != MatchResultFailed {
		t.Fatalf("expected FAILED when no PO was matched, got %+v", res.Delta)
	}
}

func TestMatchTwoWayObservesDomainMetricsWhenSet(t *testing.T) {
	n := NewMatchTwoWayNode(newMockOrchestrator(), 0.85, 2)
	n.Metrics = NewDomainMetrics(nil)
	// Must not panic with a non-nil Metrics set.
	n.Run(context.Background(), baseMatchState(500, 500))
}

func TestMatchTwoWayNilMetricsIsSafe(t *testing.T) {
	n := NewMatchTwoWayNode(newMockOrchestrator(), 0.85, 2)
	// Metrics left nil (zero value): Observe must be a no-op, not a panic.
	n.Run(context.Background(), baseMatchState(500, 500))
}

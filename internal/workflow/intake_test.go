package workflow

import (
	"context"
	"testing"
)

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"invoice_id":  "INV-1",
		"vendor_name": "Acme Co",
		"amount":      100.0,
		"currency":    "USD",
		"line_items":  []interface{}{map[string]interface{}{"desc": "widget"}},
	}
}

func TestValidateInvoicePayloadAcceptsValidInvoice(t *testing.T) {
	if err := validateInvoicePayload(validPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvoicePayloadRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"nil payload", nil},
		{"missing invoice_id", func(p map[string]interface{}) { delete(p, "invoice_id") }},
		{"missing vendor_name", func(p map[string]interface{}) { delete(p, "vendor_name") }},
		{"zero amount", func(p map[string]interface{}) { p["amount"] = 0.0 }},
		{"negative amount", func(p map[string]interface{}) { p["amount"] = -5.0 }},
		{"short currency", func(p map[string]interface{}) { p["currency"] = "US" }},
		{"no line items", func(p map[string]interface{}) { p["line_items"] = []interface{}{} }},
	}
	for _, c := range cases {
		var payload map[string]interface{}
		if c.name != "nil payload" {
			payload = validPayload()
		}
		if c.mutate != nil {
			c.mutate(payload)
		}
		if err := validateInvoicePayload(payload); err == nil {
			t.Errorf("%s: expected validation error, got none", c.name)
		}
	}
}

func TestIntakeNodeAssignsRawIDOnValidPayload(t *testing.T) {
	n := NewIntakeNode(newMockOrchestrator())
	res := n.Run(context.Background(), State{InvoicePayload: validPayload()})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Delta.RawID == "" {
		t.Fatal("expected a raw_id to be assigned")
	}
	if res.Delta.Status != StatusRunning {
		t.Fatalf("expected RUNNING status, got %v", res.Delta.Status)
	}
}

func TestIntakeNodeFailsOnInvalidPayload(t *testing.T) {
	n := NewIntakeNode(newMockOrchestrator())
	res := n.Run(context.Background(), State{InvoicePayload: map[string]interface{}{}})
	if res.Err == nil {
		t.Fatal("expected an error for an empty payload")
	}
	if res.Delta.Status != StatusFailed {
		t.Fatalf("expected FAILED status, got %v", res.Delta.Status)
	}
}

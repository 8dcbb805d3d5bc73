package capabilityserver

import "fmt"

// NewAtlasServer builds the ATLAS capability server: OCR, vendor
// enrichment, ERP connector, email, and policy (spec §6.2).
func NewAtlasServer() *Server {
	return New("ATLAS", "External integrations: OCR, vendor enrichment, ERP, email, policy.", []Tool{
		ocrTool("google_vision"),
		ocrTool("aws_textract"),
		ocrTool("tesseract"),
		enrichmentTool("clearbit"),
		enrichmentTool("people_data_labs"),
		enrichmentTool("vendor_db"),
		erpTool("sap_sandbox"),
		erpTool("netsuite"),
		erpTool("mock_erp"),
		emailTool("sendgrid"),
		emailTool("ses"),
		emailTool("smartlead"),
		{
			Name:        "policy",
			Description: "Evaluates approval policy thresholds for a given amount and risk score.",
			InputSchema: schema("amount", "risk_score"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"evaluated": true}, nil
			},
		},
	})
}

// ocrTool builds a mock handler for one candidate of the ocr pool: text
// extraction from the raw invoice document.
func ocrTool(backend string) Tool {
	return Tool{
		Name:        backend,
		Description: fmt.Sprintf("OCR backend (%s) extracting text from the raw invoice document.", backend),
		InputSchema: schema("raw_id"),
		Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"text":    "invoice document text (mock extraction)",
				"backend": backend,
			}, nil
		},
	}
}

// enrichmentTool builds a mock handler for one candidate of the enrichment
// pool: vendor identity and risk metadata lookup.
func enrichmentTool(backend string) Tool {
	return Tool{
		Name:        backend,
		Description: fmt.Sprintf("Vendor enrichment backend (%s).", backend),
		InputSchema: schema("vendor_name"),
		Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"backend":    backend,
				"tax_id":     "UNKNOWN",
				"risk_score": 0.1,
			}, nil
		},
	}
}

// erpTool builds a mock handler for one candidate of the erp_connector
// pool: PO/GRN retrieval, posting, and payment scheduling.
func erpTool(backend string) Tool {
	return Tool{
		Name:        backend,
		Description: fmt.Sprintf("ERP connector backend (%s) for POs, GRNs, posting, and payment scheduling.", backend),
		InputSchema: schema("thread_id"),
		Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"backend":         backend,
				"purchase_orders": []interface{}{},
				"grns":            []interface{}{},
			}, nil
		},
	}
}

// emailTool builds a mock handler for one candidate of the email pool:
// vendor/finance notification delivery.
func emailTool(backend string) Tool {
	return Tool{
		Name:        backend,
		Description: fmt.Sprintf("Email delivery backend (%s).", backend),
		InputSchema: schema("thread_id"),
		Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"sent": true, "backend": backend}, nil
		},
	}
}

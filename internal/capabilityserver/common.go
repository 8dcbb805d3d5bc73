package capabilityserver

import "fmt"

// NewCommonServer builds the COMMON capability server: validation,
// persistence, parsing, normalization, matching, checkpoint bookkeeping,
// accounting entries, and audit persistence (spec §6.2).
func NewCommonServer() *Server {
	return New("COMMON", "Internal operations: validation, persistence, parsing, normalization, matching, checkpoints, accounting, audit.", []Tool{
		{
			Name:        "validation",
			Description: "Validates an invoice payload against the canonical schema.",
			InputSchema: schema("invoice_id"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"valid": true, "invoice_id": params["invoice_id"]}, nil
			},
		},
		{
			Name:        "persistence",
			Description: "Persists the raw invoice record and returns a storage acknowledgement.",
			InputSchema: schema("invoice_id"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"stored": true, "invoice_id": params["invoice_id"]}, nil
			},
		},
		{
			Name:        "parsing",
			Description: "Extracts PO references and structured fields from OCR text.",
			InputSchema: schema("raw_id"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"detected_pos": []interface{}{}}, nil
			},
		},
		{
			Name:        "normalize",
			Description: "Normalizes a vendor name to its canonical form.",
			InputSchema: schema("vendor_name"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"normalized": true}, nil
			},
		},
		{
			Name:        "matching",
			Description: "Runs the two-way match scoring algorithm.",
			InputSchema: schema("raw_id"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"scored": true}, nil
			},
		},
		{
			Name:        "checkpoint",
			Description: "Records HITL checkpoint bookkeeping for a thread.",
			InputSchema: schema("thread_id"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"recorded": true, "thread_id": params["thread_id"]}, nil
			},
		},
		{
			Name:        "accounting",
			Description: "Posts a balanced debit/credit accounting entry pair.",
			InputSchema: schema("thread_id", "amount"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"posted": true}, nil
			},
		},
		{
			Name:        "audit",
			Description: "Persists the workflow's audit log entries durably.",
			InputSchema: schema("thread_id"),
			Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"persisted": true}, nil
			},
		},
		storageTool("s3"),
		storageTool("gcs"),
		storageTool("local_fs"),
		dbTool("postgres"),
		dbTool("sqlite"),
		dbTool("dynamodb"),
	})
}

// storageTool builds a mock handler for one candidate of the storage pool
// (spec §6.2's object-storage backends, selected by the Bigtool picker).
func storageTool(backend string) Tool {
	return Tool{
		Name:        backend,
		Description: fmt.Sprintf("Object storage backend (%s) for raw invoice artifacts.", backend),
		InputSchema: schema("invoice_id"),
		Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"stored": true, "backend": backend, "invoice_id": params["invoice_id"]}, nil
		},
	}
}

// dbTool builds a mock handler for one candidate of the db pool. No stage
// currently calls the "db" capability directly; this roster entry exists
// so a future stage or operator query that does has somewhere to land.
func dbTool(backend string) Tool {
	return Tool{
		Name:        backend,
		Description: fmt.Sprintf("Relational/NoSQL backend (%s) for workflow-adjacent lookups.", backend),
		InputSchema: schema("thread_id"),
		Handler: func(params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"queried": true, "backend": backend}, nil
		},
	}
}

func schema(required ...string) map[string]interface{} {
	props := make(map[string]interface{}, len(required))
	for _, r := range required {
		props[r] = map[string]interface{}{"type": "string"}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

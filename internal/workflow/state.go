// Package workflow implements the twelve-stage invoice processing pipeline:
// the WorkflowState record, its reducer, the stage executors, and the
// graph wiring that connects them into a graph.Engine.
package workflow

import "time"

// Status values for State.Status.
const (
	StatusRunning                = "RUNNING"
	StatusPaused                 = "PAUSED"
	StatusCompleted              = "COMPLETED"
	StatusFailed                 = "FAILED"
	StatusRequiresManualHandling = "REQUIRES_MANUAL_HANDLING"
)

// Match outcomes for State.MatchResult.
const (
	MatchResultMatched = "MATCHED"
	MatchResultFailed  = "FAILED"
)

// Human decisions for State.HumanDecision.
const (
	DecisionAccept = "ACCEPT"
	DecisionReject = "REJECT"
)

// LineItem is one invoice or purchase-order line.
type LineItem struct {
	Desc      string  `json:"desc"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// ParsedInvoice is UNDERSTAND's output: OCR text plus extracted line items.
type ParsedInvoice struct {
	Text        string            `json:"text"`
	LineItems   []LineItem        `json:"line_items"`
	DetectedPOs []string          `json:"detected_pos"`
	Currency    string            `json:"currency"`
	ParsedDates map[string]string `json:"parsed_dates"`
}

// VendorProfile is PREPARE's enrichment output.
type VendorProfile struct {
	NormalizedName string                 `json:"normalized_name"`
	TaxID          string                 `json:"tax_id"`
	EnrichmentMeta map[string]interface{} `json:"enrichment_meta"`
	RiskScore      float64                `json:"risk_score"`
}

// PurchaseOrder is a matched PO fetched by RETRIEVE.
type PurchaseOrder struct {
	PONumber    string     `json:"po_number"`
	TotalAmount float64    `json:"total_amount"`
	LineItems   []LineItem `json:"line_items"`
}

// MatchEvidence is MATCH_TWO_WAY's explainability output.
type MatchEvidence struct {
	MatchedFields    []string                 `json:"matched_fields,omitempty"`
	MismatchedFields []string                 `json:"mismatched_fields,omitempty"`
	LineItemDetails  []map[string]interface{} `json:"line_item_details,omitempty"`
	ComponentScores  map[string]float64       `json:"component_scores,omitempty"`
}

// AccountingEntry is one leg of a DEBIT/CREDIT pair produced by RECONCILE.
type AccountingEntry struct {
	Account string  `json:"account"`
	Type    string  `json:"type"` // DEBIT or CREDIT
	Amount  float64 `json:"amount"`
}

// AuditEntry records one audit-log line, following the original's
// create_audit_entry(stage, action, details) shape extended with an agent
// label.
type AuditEntry struct {
	Stage     string                 `json:"stage"`
	Action    string                 `json:"action"`
	Agent     string                 `json:"agent"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ErrorEntry records one error-log line.
type ErrorEntry struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the single heterogeneous record every stage reads and writes,
// per spec §3.1. The engine is the sole writer; within one thread_id
// execution is strictly sequential, so no field-level locking is needed.
type State struct {
	// Identity
	ThreadID string    `json:"thread_id"`
	RawID    string    `json:"raw_id"`
	IngestTS time.Time `json:"ingest_ts"`

	// Input
	InvoicePayload map[string]interface{} `json:"invoice_payload"`
	Attachments    []string                `json:"attachments"`

	// Parsing
	ParsedInvoice *ParsedInvoice `json:"parsed_invoice,omitempty"`

	// Enrichment
	VendorProfile     *VendorProfile         `json:"vendor_profile,omitempty"`
	NormalizedInvoice map[string]interface{} `json:"normalized_invoice,omitempty"`
	Flags             []string               `json:"flags,omitempty"`

	// ERP
	MatchedPOs  []PurchaseOrder          `json:"matched_pos,omitempty"`
	MatchedGRNs []map[string]interface{} `json:"matched_grns,omitempty"`
	History     []map[string]interface{} `json:"history,omitempty"`

	// Match
	MatchScore    float64        `json:"match_score"`
	MatchResult   string         `json:"match_result,omitempty"`
	TolerancePct  float64        `json:"tolerance_pct"`
	MatchEvidence *MatchEvidence `json:"match_evidence,omitempty"`

	// HITL
	HITLCheckpointID string `json:"hitl_checkpoint_id,omitempty"`
	ReviewURL        string `json:"review_url,omitempty"`
	PausedReason     string `json:"paused_reason,omitempty"`
	HumanDecision    string `json:"human_decision,omitempty"`
	ReviewerID       string `json:"reviewer_id,omitempty"`
	ReviewerNotes    string `json:"reviewer_notes,omitempty"`

	// Accounting
	AccountingEntries    []AccountingEntry      `json:"accounting_entries,omitempty"`
	ReconciliationReport map[string]interface{} `json:"reconciliation_report,omitempty"`

	// Outcome
	ApprovalStatus     string                 `json:"approval_status,omitempty"`
	ApproverID         string                 `json:"approver_id,omitempty"`
	Posted             bool                   `json:"posted"`
	ERPTxnID           string                 `json:"erp_txn_id,omitempty"`
	ScheduledPaymentID string                 `json:"scheduled_payment_id,omitempty"`
	NotifyStatus       string                 `json:"notify_status,omitempty"`
	NotifiedParties    []string               `json:"notified_parties,omitempty"`
	FinalPayload       map[string]interface{} `json:"final_payload,omitempty"`

	// Meta
	CurrentStage      string            `json:"current_stage,omitempty"`
	Status            string            `json:"status"`
	Error             string            `json:"error,omitempty"`
	AuditLog          []AuditEntry      `json:"audit_log,omitempty"`
	BigtoolSelections map[string]string `json:"bigtool_selections,omitempty"`
	ErrorLog          []ErrorEntry      `json:"error_log,omitempty"`
}

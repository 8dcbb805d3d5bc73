package workflow

import "time"

// Reduce merges delta into prev per spec §3.1: audit_log and error_log are
// append-only (deltas concatenate); every other field is last-writer-wins,
// where an unset (zero-value) delta field never overwrites a set prev
// field. This mirrors a Python dict.update() over only the keys a stage
// actually returned, which is the source's own merge semantics.
func Reduce(prev, delta State) State {
	if delta.ThreadID != "" {
		prev.ThreadID = delta.ThreadID
	}
	if delta.RawID != "" {
		prev.RawID = delta.RawID
	}
	if !delta.IngestTS.IsZero() {
		prev.IngestTS = delta.IngestTS
	}
	if delta.InvoicePayload != nil {
		prev.InvoicePayload = delta.InvoicePayload
	}
	if delta.Attachments != nil {
		prev.Attachments = delta.Attachments
	}
	if delta.ParsedInvoice != nil {
		prev.ParsedInvoice = delta.ParsedInvoice
	}
	if delta.VendorProfile != nil {
		prev.VendorProfile = delta.VendorProfile
	}
	if delta.NormalizedInvoice != nil {
		prev.NormalizedInvoice = delta.NormalizedInvoice
	}
	if delta.Flags != nil {
		prev.Flags = delta.Flags
	}
	if delta.MatchedPOs != nil {
		prev.MatchedPOs = delta.MatchedPOs
	}
	if delta.MatchedGRNs != nil {
		prev.MatchedGRNs = delta.MatchedGRNs
	}
	if delta.History != nil {
		prev.History = delta.History
	}
	if delta.MatchScore != 0 {
		prev.MatchScore = delta.MatchScore
	}
	if delta.MatchResult != "" {
		prev.MatchResult = delta.MatchResult
	}
	if delta.TolerancePct != 0 {
		prev.TolerancePct = delta.TolerancePct
	}
	if delta.MatchEvidence != nil {
		prev.MatchEvidence = delta.MatchEvidence
	}
	if delta.HITLCheckpointID != "" {
		prev.HITLCheckpointID = delta.HITLCheckpointID
	}
	if delta.ReviewURL != "" {
		prev.ReviewURL = delta.ReviewURL
	}
	if delta.PausedReason != "" {
		prev.PausedReason = delta.PausedReason
	}
	if delta.HumanDecision != "" {
		prev.HumanDecision = delta.HumanDecision
	}
	if delta.ReviewerID != "" {
		prev.ReviewerID = delta.ReviewerID
	}
	if delta.ReviewerNotes != "" {
		prev.ReviewerNotes = delta.ReviewerNotes
	}
	if delta.AccountingEntries != nil {
		prev.AccountingEntries = delta.AccountingEntries
	}
	if delta.ReconciliationReport != nil {
		prev.ReconciliationReport = delta.ReconciliationReport
	}
	if delta.ApprovalStatus != "" {
		prev.ApprovalStatus = delta.ApprovalStatus
	}
	if delta.ApproverID != "" {
		prev.ApproverID = delta.ApproverID
	}
	if delta.Posted {
		prev.Posted = true
	}
	if delta.ERPTxnID != "" {
		prev.ERPTxnID = delta.ERPTxnID
	}
	if delta.ScheduledPaymentID != "" {
		prev.ScheduledPaymentID = delta.ScheduledPaymentID
	}
	if delta.NotifyStatus != "" {
		prev.NotifyStatus = delta.NotifyStatus
	}
	if delta.NotifiedParties != nil {
		prev.NotifiedParties = delta.NotifiedParties
	}
	if delta.FinalPayload != nil {
		prev.FinalPayload = delta.FinalPayload
	}
	if delta.CurrentStage != "" {
		prev.CurrentStage = delta.CurrentStage
	}
	if delta.Status != "" {
		prev.Status = delta.Status
	}
	if delta.Error != "" {
		prev.Error = delta.Error
	}
	if delta.BigtoolSelections != nil {
		if prev.BigtoolSelections == nil {
			prev.BigtoolSelections = make(map[string]string, len(delta.BigtoolSelections))
		}
		for k, v := range delta.BigtoolSelections {
			prev.BigtoolSelections[k] = v
		}
	}

	// append-only fields
	prev.AuditLog = append(prev.AuditLog, delta.AuditLog...)
	prev.ErrorLog = append(prev.ErrorLog, delta.ErrorLog...)

	return prev
}

// Audit builds an AuditEntry for inclusion in a stage's delta.
func Audit(stage, action, agent string, details map[string]interface{}) AuditEntry {
	return AuditEntry{Stage: stage, Action: action, Agent: agent, Details: details, Timestamp: time.Now()}
}

// Errorf builds an ErrorEntry for inclusion in a stage's delta.
func Errorf(stage, message string) ErrorEntry {
	return ErrorEntry{Stage: stage, Message: message, Timestamp: time.Now()}
}

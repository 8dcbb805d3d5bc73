// Package httpapi implements the client-facing HTTP surface (spec §6.1):
// invoice submission, status polling, the human-review queue, the static
// stage catalog, and the SSE event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/graph/emit"
	"github.com/invoiceflow/workflow-engine/graph/store"
	"github.com/invoiceflow/workflow-engine/internal/reviewqueue"
	"github.com/invoiceflow/workflow-engine/internal/workflow"
)

// Server implements the invoice workflow's HTTP surface.
type Server struct {
	Engine      *graph.Engine[workflow.State]
	Store       store.Store[workflow.State]
	Bus         *emit.Bus
	ReviewQueue reviewqueue.Store
}

// New creates a Server and builds its router.
func New(engine *graph.Engine[workflow.State], st store.Store[workflow.State], bus *emit.Bus, rq reviewqueue.Store) *Server {
	return &Server{Engine: engine, Store: st, Bus: bus, ReviewQueue: rq}
}

// Router builds the mux.Router exposing every endpoint in spec §6.1.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/invoice/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/invoice/status/{thread_id}", s.handleInvoiceStatus).Methods(http.MethodGet)
	r.HandleFunc("/human-review/pending", s.handlePendingReviews).Methods(http.MethodGet)
	r.HandleFunc("/human-review/{checkpoint_id}", s.handleReviewDetail).Methods(http.MethodGet)
	r.HandleFunc("/human-review/decision", s.handleDecision).Methods(http.MethodPost)
	r.HandleFunc("/workflow/stages", s.handleStages).Methods(http.MethodGet)
	r.HandleFunc("/workflow/status/{thread_id}", s.handleWorkflowStatus).Methods(http.MethodGet)
	r.HandleFunc("/workflow/all", s.handleWorkflowAll).Methods(http.MethodGet)
	r.HandleFunc("/events/workflow/{thread_id}", s.handleEventStream).Methods(http.MethodGet)
	r.HandleFunc("/events/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"service": "invoiced", "status": "up"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	type stageEntry struct {
		Stage string `json:"stage"`
		Mode  string `json:"mode"`
	}
	entries := make([]stageEntry, 0, len(workflow.StageOrder))
	for _, stage := range workflow.StageOrder {
		entries = append(entries, stageEntry{Stage: stage, Mode: stageMode(stage)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": entries, "total": len(entries)})
}

func stageMode(stage string) string {
	switch stage {
	case "HITL_DECISION":
		return "suspend"
	case "COMPLETE", "MANUAL_HANDOFF":
		return "terminal"
	default:
		return "sequential"
	}
}

// submitRequest is the canonical invoice payload, spec §6.3.
type submitRequest struct {
	InvoiceID   string        `json:"invoice_id"`
	VendorName  string        `json:"vendor_name"`
	VendorTaxID string        `json:"vendor_tax_id,omitempty"`
	InvoiceDate string        `json:"invoice_date"`
	DueDate     string        `json:"due_date"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	LineItems   []interface{} `json:"line_items"`
	Attachments []string      `json:"attachments"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed invoice payload: "+err.Error())
		return
	}

	payload := map[string]interface{}{
		"invoice_id":    req.InvoiceID,
		"vendor_name":   req.VendorName,
		"vendor_tax_id": req.VendorTaxID,
		"invoice_date":  req.InvoiceDate,
		"due_date":      req.DueDate,
		"amount":        req.Amount,
		"currency":      req.Currency,
		"line_items":    req.LineItems,
		"attachments":   req.Attachments,
	}

	threadID := uuid.NewString()
	initial := workflow.State{
		ThreadID:       threadID,
		IngestTS:       time.Now().UTC(),
		InvoicePayload: payload,
		Attachments:    req.Attachments,
		Status:         workflow.StatusRunning,
		CurrentStage:   "INTAKE",
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Engine.Run(ctx, threadID, initial); err != nil {
			s.Bus.Emit(emit.NewLog(threadID, emit.LevelError, err.Error(), "INTAKE", "engine_error", nil))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"thread_id":     threadID,
		"status":        workflow.StatusRunning,
		"current_stage": "INTAKE",
		"message":       "workflow started",
	})
}

func (s *Server) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatusSnapshot(w, r, false)
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatusSnapshot(w, r, true)
}

func (s *Server) writeStatusSnapshot(w http.ResponseWriter, r *http.Request, detailed bool) {
	threadID := mux.Vars(r)["thread_id"]
	latest, err := s.Store.LoadLatest(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown thread_id")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]interface{}{
		"thread_id":     threadID,
		"status":        latest.State.Status,
		"current_stage": latest.PositionNode,
		"suspended":     latest.PendingInterrupt,
	}
	if !detailed {
		writeJSON(w, http.StatusOK, body)
		return
	}

	history, err := s.Store.History(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	completed := make([]string, 0, len(history))
	for _, h := range history {
		completed = append(completed, h.PositionNode)
	}
	pending := remainingStages(latest.PositionNode, latest.PendingInterrupt)

	body["stages_completed"] = completed
	body["stages_pending"] = pending
	body["match_score"] = latest.State.MatchScore
	body["final_payload"] = latest.State.FinalPayload
	body["error"] = latest.State.Error
	writeJSON(w, http.StatusOK, body)
}

func remainingStages(currentStage string, suspended bool) []string {
	idx := -1
	for i, stage := range workflow.StageOrder {
		if stage == currentStage {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if suspended {
		return append([]string(nil), workflow.StageOrder[idx:]...)
	}
	return append([]string(nil), workflow.StageOrder[idx+1:]...)
}

func (s *Server) handleWorkflowAll(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.ThreadIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	workflows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		latest, err := s.Store.LoadLatest(r.Context(), id)
		if err != nil {
			continue
		}
		workflows = append(workflows, map[string]interface{}{
			"thread_id":     id,
			"status":        latest.State.Status,
			"current_stage": latest.PositionNode,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": workflows, "total": len(workflows)})
}

func (s *Server) handlePendingReviews(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ReviewQueue.List(r.Context(), reviewqueue.StatusPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": recs, "total": len(recs)})
}

func (s *Server) handleReviewDetail(w http.ResponseWriter, r *http.Request) {
	checkpointID := mux.Vars(r)["checkpoint_id"]
	rec, err := s.ReviewQueue.Get(r.Context(), checkpointID)
	if err != nil {
		if errors.Is(err, reviewqueue.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown checkpoint_id")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]interface{}{"review": rec}
	if latest, err := s.Store.LoadLatest(r.Context(), rec.ThreadID); err == nil {
		body["state"] = latest.State
	}
	writeJSON(w, http.StatusOK, body)
}

type decisionRequest struct {
	ThreadID     string `json:"thread_id"`
	CheckpointID string `json:"checkpoint_id"`
	Decision     string `json:"decision"`
	ReviewerID   string `json:"reviewer_id"`
	Notes        string `json:"notes,omitempty"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed decision payload: "+err.Error())
		return
	}
	if req.Decision != workflow.DecisionAccept && req.Decision != workflow.DecisionReject {
		writeError(w, http.StatusBadRequest, "decision must be ACCEPT or REJECT")
		return
	}

	rec, err := s.ReviewQueue.Decide(r.Context(), req.CheckpointID, req.Decision, req.ReviewerID, req.Notes, time.Now().UTC())
	if errors.Is(err, reviewqueue.ErrAlreadyReviewed) {
		// Idempotent: the first decision already resumed the workflow.
		// Report the current state rather than calling Resume again.
		latest, loadErr := s.Store.LoadLatest(r.Context(), rec.ThreadID)
		status := rec.Status
		stage := ""
		if loadErr == nil {
			status = latest.State.Status
			stage = latest.PositionNode
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":       true,
			"thread_id":     rec.ThreadID,
			"checkpoint_id": req.CheckpointID,
			"decision":      rec.Decision,
			"next_stage":    stage,
			"status":        status,
			"message":       "decision already recorded; no action taken",
		})
		return
	}
	if errors.Is(err, reviewqueue.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown checkpoint_id")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	decisionState := workflow.State{
		ThreadID:      rec.ThreadID,
		HumanDecision: req.Decision,
		ReviewerID:    req.ReviewerID,
		ReviewerNotes: req.Notes,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Engine.Resume(ctx, rec.ThreadID, decisionState); err != nil {
			s.Bus.Emit(emit.NewLog(rec.ThreadID, emit.LevelError, err.Error(), "HITL_DECISION", "engine_error", nil))
		}
	}()

	nextStage := "RECONCILE"
	if req.Decision == workflow.DecisionReject {
		nextStage = "MANUAL_HANDOFF"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"thread_id":     rec.ThreadID,
		"checkpoint_id": req.CheckpointID,
		"decision":      req.Decision,
		"next_stage":    nextStage,
		"status":        workflow.StatusRunning,
		"message":       "decision accepted; workflow resuming",
	})
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	includeHistory := r.URL.Query().Get("include_history") != "false"
	events := s.Bus.Subscribe(r.Context(), threadID, includeHistory)

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}

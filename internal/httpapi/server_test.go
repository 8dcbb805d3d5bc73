package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/invoiceflow/workflow-engine/graph/emit"
	"github.com/invoiceflow/workflow-engine/graph/store"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
	"github.com/invoiceflow/workflow-engine/internal/reviewqueue"
	"github.com/invoiceflow/workflow-engine/internal/workflow"
)

// newTestServer builds a full Server backed by a real workflow engine
// wired to an unreachable-but-mock-fallback orchestrator, so submitted
// invoices actually run the twelve-stage graph end to end without any
// network access.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	common := bigtool.NewServerClient(bigtool.ServerCommon, "http://127.0.0.1:1")
	atlas := bigtool.NewServerClient(bigtool.ServerAtlas, "http://127.0.0.1:1")
	orch := bigtool.NewOrchestrator(common, atlas, true)

	st := store.NewMemStore[workflow.State]()
	bus := emit.NewBus()
	rq := reviewqueue.NewMemStore()

	engine := workflow.NewEngine(workflow.Dependencies{
		Orchestrator:   orch,
		Store:          st,
		Bus:            bus,
		ReviewQueue:    rq,
		MatchThreshold: 0.85,
		TolerancePct:   2,
		ReviewURLFmt:   "/human-review/%s",
	})

	return New(engine, st, bus, rq)
}

func validSubmitBody() string {
	return `{
		"invoice_id": "INV-1",
		"vendor_name": "Acme Co",
		"invoice_date": "2026-01-01",
		"due_date": "2026-02-01",
		"amount": 100,
		"currency": "USD",
		"line_items": [{"desc": "widget", "qty": 1, "unit_price": 100}]
	}`
}

func TestHandleSubmitStartsAWorkflow(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/invoice/submit", strings.NewReader(validSubmitBody()))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["thread_id"] == "" || body["thread_id"] == nil {
		t.Fatalf("expected a thread_id, got %+v", body)
	}
	if body["current_stage"] != "INTAKE" {
		t.Fatalf("expected current_stage INTAKE, got %+v", body)
	}
}

func TestHandleSubmitRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/invoice/submit", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleInvoiceStatusUnknownThreadReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/invoice/status/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleSubmitThenStatusEventuallyCompletes(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/invoice/submit", strings.NewReader(validSubmitBody()))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var submitBody map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &submitBody)
	threadID, _ := submitBody["thread_id"].(string)

	// retrieve.go echoes the submitted invoice as its own PO when the mock
	// ERP has none on file, so this single-line-item submission scores a
	// perfect match and must run straight through to COMPLETE rather than
	// suspending at CHECKPOINT_HITL or failing at INTAKE.
	deadline := time.Now().Add(2 * time.Second)
	var status int
	var lastBody map[string]interface{}
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/invoice/status/"+threadID, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		status = rec.Code
		if status == http.StatusOK {
			var body map[string]interface{}
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			lastBody = body
			if body["status"] == workflow.StatusCompleted {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("workflow never reached COMPLETED, last code %d, last body %+v", status, lastBody)
}

func TestHandleStagesListsAllTwelveStagesWithModes(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/workflow/stages", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["total"].(float64) != float64(len(workflow.StageOrder)) {
		t.Fatalf("expected %d stages, got %v", len(workflow.StageOrder), body["total"])
	}
}

func TestHandlePendingReviewsEmptyByDefault(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/human-review/pending", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["total"].(float64) != 0 {
		t.Fatalf("expected zero pending reviews, got %+v", body)
	}
}

func TestHandleReviewDetailUnknownCheckpointReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/human-review/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDecisionRejectsInvalidDecisionValue(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]string{
		"checkpoint_id": "cp-1",
		"decision":      "MAYBE",
		"reviewer_id":   "r1",
	})
	req := httptest.NewRequest(http.MethodPost, "/human-review/decision", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleDecisionUnknownCheckpointReturns404(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]string{
		"checkpoint_id": "nonexistent",
		"decision":      workflow.DecisionAccept,
		"reviewer_id":   "r1",
	})
	req := httptest.NewRequest(http.MethodPost, "/human-review/decision", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDecisionIsIdempotentOnSecondIdenticalCall(t *testing.T) {
	s := newTestServer(t)
	rq := s.ReviewQueue
	_ = rq.Create(context.Background(), reviewqueue.Record{
		ThreadID:     "t1",
		CheckpointID: "cp-1",
		Status:       reviewqueue.StatusPending,
	})

	body, _ := json.Marshal(map[string]string{
		"checkpoint_id": "cp-1",
		"decision":      workflow.DecisionAccept,
		"reviewer_id":   "r1",
	})

	req1 := httptest.NewRequest(http.MethodPost, "/human-review/decision", bytes.NewReader(body))
	rec1 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first decision to succeed, got %d: %s", rec1.Code, rec1.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodPost, "/human-review/decision", bytes.NewReader(body))
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected second identical decision to also report success, got %d", rec2.Code)
	}
	var second map[string]interface{}
	_ = json.Unmarshal(rec2.Body.Bytes(), &second)
	if second["message"] != "decision already recorded; no action taken" {
		t.Fatalf("expected idempotent message on second call, got %+v", second)
	}
}

func TestHandleHealthAndRoot(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/events/health", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

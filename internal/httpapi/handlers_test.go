package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"salesops-console/internal/audit"
	"salesops-console/internal/calls"
	"salesops-console/internal/happyrobot"
)

// stubPlatform answers every trigger with a fixed run id or error. The
// reconciliation capabilities stay off so handler tests exercise only the
// HTTP surface.
type stubPlatform struct {
	runID string
	err   error
}

func (p *stubPlatform) TriggerConfigured() bool { return true }

func (p *stubPlatform) StartRun(ctx context.Context, req happyrobot.StartRunRequest) (happyrobot.StartRunResult, error) {
	if p.err != nil {
		return happyrobot.StartRunResult{}, p.err
	}
	return happyrobot.StartRunResult{RunID: p.runID}, nil
}

func (p *stubPlatform) PollingConfigured() bool { return false }

func (p *stubPlatform) PollRun(ctx context.Context, runID string) (string, error) {
	return "", happyrobot.ErrNotConfigured
}

func (p *stubPlatform) ReconcileConfigured() bool { return false }

func (p *stubPlatform) ListFailedRuns(ctx context.Context, since time.Time) ([]happyrobot.RunSummary, error) {
	return nil, happyrobot.ErrNotConfigured
}

type fixture struct {
	router *gin.Engine
	store  *calls.MemoryStore
}

func newFixture(t *testing.T, platform *stubPlatform, callbackSecret string) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := calls.NewMemoryStore()
	auditSvc := audit.NewService(audit.NewMemoryRepo())
	h := Handlers{
		Trigger:        calls.NewTriggerService(store, platform, auditSvc, ""),
		Reconciler:     calls.NewReconciler(store, platform, nil, auditSvc, calls.ReconcilerOptions{}),
		Callback:       calls.NewCallbackApplier(store, auditSvc),
		Store:          store,
		CallbackSecret: callbackSecret,
	}

	r := gin.New()
	r.POST("/webhooks/happyrobot/callback", h.PlatformCallback)
	r.POST("/v1/calls/trigger", h.TriggerCall)
	r.GET("/v1/calls", h.ListCalls)
	r.GET("/v1/calls/status", h.CallStatus)
	return fixture{router: r, store: store}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestTriggerCall_Created(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "")

	w, body := doJSON(t, f.router, http.MethodPost, "/v1/calls/trigger",
		`{"subjectName":"Jane Doe","phoneNumber":"+34612345678"}`, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	call, _ := body["call"].(map[string]any)
	if call == nil || call["status"] != "RUNNING" || call["runId"] != "run_abc" {
		t.Fatalf("unexpected call view: %v", body)
	}
}

func TestTriggerCall_ValidationError(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "")

	w, body := doJSON(t, f.router, http.MethodPost, "/v1/calls/trigger",
		`{"subjectName":"Jane Doe","phoneNumber":"612"}`, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	details, _ := body["details"].(map[string]any)
	if details == nil || details["phoneNumber"] == nil {
		t.Fatalf("expected field details, got %v", body)
	}
	// The rejected attempt is still recorded.
	call, _ := body["call"].(map[string]any)
	if call == nil || call["status"] != "FAILED" {
		t.Fatalf("expected persisted FAILED record in response, got %v", body)
	}
}

func TestTriggerCall_UpstreamFailure(t *testing.T) {
	f := newFixture(t, &stubPlatform{err: &happyrobot.APIError{StatusCode: 503, Body: "down"}}, "")

	w, body := doJSON(t, f.router, http.MethodPost, "/v1/calls/trigger",
		`{"subjectName":"Jane Doe","phoneNumber":"+34612345678"}`, nil)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	call, _ := body["call"].(map[string]any)
	if call == nil || call["status"] != "FAILED" {
		t.Fatalf("expected FAILED record in response, got %v", body)
	}
}

func TestPlatformCallback_SecretRequired(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "s3cret")

	w, _ := doJSON(t, f.router, http.MethodPost, "/webhooks/happyrobot/callback",
		`{"run_id":"run_abc","status":"success"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}

	w, _ = doJSON(t, f.router, http.MethodPost, "/webhooks/happyrobot/callback",
		`{"run_id":"run_abc","status":"success"}`, map[string]string{"x-callback-secret": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", w.Code)
	}
}

func TestPlatformCallback_AppliesStatus(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "s3cret")

	w, _ := doJSON(t, f.router, http.MethodPost, "/v1/calls/trigger",
		`{"subjectName":"Jane Doe","phoneNumber":"+34612345678"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("trigger failed: %d", w.Code)
	}

	w, body := doJSON(t, f.router, http.MethodPost, "/webhooks/happyrobot/callback",
		`{"run_id":"run_abc","status":"success","result":{"summary":"all good"}}`,
		map[string]string{"x-happyrobot-callback-secret": "s3cret"})
	if w.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("expected 200 ok, got %d: %s", w.Code, w.Body.String())
	}

	rec, err := f.store.GetByRunID(context.Background(), "run_abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", rec.Status)
	}
}

func TestPlatformCallback_BadPayloads(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "")

	w, _ := doJSON(t, f.router, http.MethodPost, "/webhooks/happyrobot/callback", `{not json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", w.Code)
	}

	w, body := doJSON(t, f.router, http.MethodPost, "/webhooks/happyrobot/callback", `{"status":"success"}`, nil)
	if w.Code != http.StatusBadRequest || body["hint"] == nil {
		t.Fatalf("expected 400 with hint for missing correlation, got %d: %s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, f.router, http.MethodPost, "/webhooks/happyrobot/callback", `{"run_id":"run_unknown"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", w.Code)
	}
}

func TestListCalls_FilterAndPagination(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "")

	for _, phone := range []string{"+34600000001", "+34600000002", "+34600000003"} {
		w, _ := doJSON(t, f.router, http.MethodPost, "/v1/calls/trigger",
			`{"subjectName":"Jane Doe","phoneNumber":"`+phone+`"}`, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("seed trigger failed: %d", w.Code)
		}
	}

	w, body := doJSON(t, f.router, http.MethodGet, "/v1/calls?page=1&pageSize=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["total"].(float64) != 3 || body["totalPages"].(float64) != 2 {
		t.Fatalf("unexpected pagination: %v", body)
	}
	if got := len(body["calls"].([]any)); got != 2 {
		t.Fatalf("expected 2 calls on page, got %d", got)
	}

	w, _ = doJSON(t, f.router, http.MethodGet, "/v1/calls?status=BOGUS", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status filter, got %d", w.Code)
	}

	w, body = doJSON(t, f.router, http.MethodGet, "/v1/calls?status=RUNNING", "", nil)
	if w.Code != http.StatusOK || body["total"].(float64) != 3 {
		t.Fatalf("expected all runs RUNNING, got %d: %v", w.Code, body)
	}
}

func TestCallStatus_ReturnsRecent(t *testing.T) {
	f := newFixture(t, &stubPlatform{runID: "run_abc"}, "")

	w, _ := doJSON(t, f.router, http.MethodPost, "/v1/calls/trigger",
		`{"subjectName":"Jane Doe","phoneNumber":"+34612345678"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("trigger failed: %d", w.Code)
	}

	w, body := doJSON(t, f.router, http.MethodGet, "/v1/calls/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	list, _ := body["calls"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 recent call, got %v", body)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/BTreeMap/FlowMentor/internal/flow"
	"github.com/BTreeMap/FlowMentor/internal/genai"
	"github.com/BTreeMap/FlowMentor/internal/mentor"
	"github.com/BTreeMap/FlowMentor/internal/models"
	"github.com/BTreeMap/FlowMentor/internal/store"
	"github.com/BTreeMap/FlowMentor/internal/testutil"
)

func newTestServer(t *testing.T, providers ...genai.Provider) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	var gen flow.Generator
	if len(providers) > 0 {
		gen = genai.NewChain(providers)
	}
	tf := flow.NewTutorFlow(mentor.NewEngine(), testutil.NewTestKnowledgeBase(), gen, st)
	return NewServer(tf, st), st
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestChatHandler_Simulation(t *testing.T) {
	s, st := newTestServer(t)
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: "这题太难了，救命"})
	rr := serve(s, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var p models.ResponsePayload
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &p)
	if p.Source != models.SourceSimulation || p.Analysis.Zone != models.ZonePanic {
		t.Errorf("unexpected payload %+v", p)
	}

	var raw map[string]interface{}
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &raw)
	if _, ok := raw["status"]; ok {
		t.Error("expected chat payload not to be wrapped in an API envelope")
	}
	if _, ok := raw["llm_errors"]; ok {
		t.Error("expected llm_errors to be absent without providers")
	}
	testutil.AssertExchangeCount(t, st, 1, "after chat")
}

func TestChatHandler_ProviderAnswer(t *testing.T) {
	s, _ := newTestServer(t,
		&testutil.FakeProvider{ProviderName: "moonshot", Err: errors.New("quota exceeded")},
		&testutil.FakeProvider{ProviderName: "openai", Reply: testutil.StructuredReply},
	)
	body := `{"message":"递归是什么","history":[{"role":"user","content":"hi"},"junk",{"role":"assistant","response":{"content":"hello"},"analysis":{"zone":"Learning"}}]}`
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", body))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat")
	var p models.ResponsePayload
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &p)
	if p.Source != "openai" {
		t.Errorf("expected openai source, got %q", p.Source)
	}
	if diff := cmp.Diff([]string{"moonshot provider failed: quota exceeded"}, p.LLMErrors); diff != "" {
		t.Errorf("llm_errors mismatch (-want +got):\n%s", diff)
	}
}

func TestChatHandler_BadRequests(t *testing.T) {
	s, st := newTestServer(t)
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"invalid JSON", "{not json", "Invalid JSON format"},
		{"wrong message type", `{"message": 42}`, "Invalid JSON format"},
		{"missing message", `{}`, "message is required"},
		{"blank message", `{"message": "   "}`, "message is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", tt.body))
			testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, tt.name)
			resp := testutil.AssertJSONResponse(t, rr, models.APIStatusError)
			if resp["message"] != tt.message {
				t.Errorf("expected message %q, got %v", tt.message, resp["message"])
			}
		})
	}
	testutil.AssertExchangeCount(t, st, 0, "after bad requests")
}

func TestChatHandler_NonArrayHistoryIgnored(t *testing.T) {
	s, st := newTestServer(t)
	for _, history := range []string{`"not a list"`, `42`, `{"role":"user"}`, `null`} {
		body := `{"message":"递归是什么","history":` + history + `}`
		rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", body))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "history="+history)
		var p models.ResponsePayload
		testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &p)
		if p.Source != models.SourceSimulation || p.Response == "" {
			t.Errorf("history=%s: unexpected payload %+v", history, p)
		}
	}
	testutil.AssertExchangeCount(t, st, 4, "after non-array histories")
}

func TestDecodeHistory(t *testing.T) {
	got := decodeHistory([]byte(`[{"role":"user","content":"hi"},"junk"]`))
	want := []models.HistoryEntry{{Role: models.RoleUser, Content: "hi"}, {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if got := decodeHistory(nil); got != nil {
		t.Errorf("expected nil for absent history, got %+v", got)
	}
	if got := decodeHistory([]byte(`"text"`)); got != nil {
		t.Errorf("expected nil for non-array history, got %+v", got)
	}
}

func TestChatHandler_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/chat", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET /api/chat")
	if allow := rr.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestExchangesHandler(t *testing.T) {
	s, _ := newTestServer(t)
	for _, msg := range []string{"one", "two", "three"} {
		rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: msg}))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "seed chat")
	}

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/exchanges?limit=2", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "exchanges")
	var resp struct {
		Status string           `json:"status"`
		Result []store.Exchange `json:"result"`
	}
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &resp)
	if len(resp.Result) != 2 || resp.Result[0].Message != "three" || resp.Result[1].Message != "two" {
		t.Errorf("unexpected exchanges %+v", resp.Result)
	}

	for _, bad := range []string{"abc", "0", "-5"} {
		rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/exchanges?limit="+bad, nil))
		testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "limit="+bad)
	}
}

func TestExchangesHandler_NoStore(t *testing.T) {
	s := NewServer(flow.NewTutorFlow(nil, nil, nil, nil), nil)
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/exchanges", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "exchanges without store")
	resp := testutil.AssertJSONResponse(t, rr, models.APIStatusOK)
	if list, ok := resp["result"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("expected empty list, got %v", resp["result"])
	}
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t, &testutil.FakeProvider{ProviderName: "moonshot"}, &testutil.FakeProvider{ProviderName: "openai"})
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/healthz", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "healthz")

	var resp struct {
		Status string       `json:"status"`
		Result HealthResult `json:"result"`
	}
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &resp)
	want := HealthResult{Providers: []string{"moonshot", "openai"}, Concepts: 2}
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status, got %q", resp.Status)
	}
	if diff := cmp.Diff(want, resp.Result); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthHandler_NoProvidersIsEmptyList(t *testing.T) {
	s, _ := newTestServer(t)
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/healthz", nil))
	if !strings.Contains(rr.Body.String(), `"providers":[]`) {
		t.Errorf("expected empty providers list, got %s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/healthz", nil))
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
	if !strings.Contains(rr.Body.String(), "flowmentor_requests_total") {
		t.Error("expected request counter in metrics exposition")
	}
}

func TestWriteJSONResponse_MarshalFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, map[string]interface{}{"bad": make(chan int)})
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "unmarshalable body")
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.Message != "Internal server error" {
		t.Errorf("expected fallback error body, got %s", rr.Body.String())
	}
}

func TestServerRun_StopsOnCancel(t *testing.T) {
	s := NewServer(flow.NewTutorFlow(nil, nil, nil, nil), nil, WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

// Package testutil provides common test utilities and helpers for FlowMentor tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/FlowMentor/internal/knowledge"
	"github.com/BTreeMap/FlowMentor/internal/models"
	"github.com/BTreeMap/FlowMentor/internal/store"
)

// StructuredReply is a well-formed provider reply that parses cleanly.
const StructuredReply = "```json\n" + `{
  "response": "递归就是函数在内部调用自己，直到遇到终止条件。",
  "microAction": "写出阶乘函数的终止条件",
  "analysis": {"emotion": "Curiosity", "zone": "Learning", "understanding_level": "Intermediate", "knowledge_used": "递归", "cognition": "exploring"},
  "radar": {"anxiety": 20, "cognitiveLoad": 45, "challenge": 60, "understanding": 50, "engagement": 75},
  "strategy": "SOCRATIC_GUIDE"
}` + "\n```"

// FakeProvider is a scripted provider. It implements genai.Provider.
type FakeProvider struct {
	ProviderName string
	Reply        string
	Err          error

	mu       sync.Mutex
	calls    int
	messages []models.ChatMessage
}

// Name returns the provider name.
func (p *FakeProvider) Name() string { return p.ProviderName }

// Complete records the call and returns the scripted reply or error.
func (p *FakeProvider) Complete(_ context.Context, messages []models.ChatMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.messages = append([]models.ChatMessage(nil), messages...)
	return p.Reply, p.Err
}

// Calls returns how many times Complete was invoked.
func (p *FakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastMessages returns the messages passed to the most recent call.
func (p *FakeProvider) LastMessages() []models.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages
}

// NewTestKnowledgeBase returns a small knowledge base covering recursion and debugging.
func NewTestKnowledgeBase() *knowledge.Base {
	return knowledge.NewBase([]knowledge.Concept{
		{
			Keywords:             []string{"递归", "recursion"},
			Definition:           "递归是函数在执行过程中调用自身的编程技巧。",
			Analogies:            []string{"俄罗斯套娃", "两面相对的镜子"},
			PsychologyStrategies: []string{"先画出调用栈"},
		},
		{
			Keywords:   []string{"bug", "调试"},
			Definition: "调试是定位并修复程序缺陷的过程。",
			Analogies:  []string{"侦探破案"},
		},
	})
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse envelope and validates the status field.
func AssertJSONResponse(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != string(expectedStatus) {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
// A string body is sent verbatim.
func CreateHTTPRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	switch b := body.(type) {
	case nil:
	case string:
		reqBody.WriteString(b)
	default:
		reqBody.Write(MustMarshalJSON(t, b))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// AssertExchangeCount validates the number of exchanges in the store.
func AssertExchangeCount(t testing.TB, st store.Store, expected int, context string) []store.Exchange {
	t.Helper()
	exchanges, err := st.ListExchanges(t.Context(), store.MaxListLimit)
	if err != nil {
		t.Fatalf("%s: failed to list exchanges: %v", context, err)
	}
	if len(exchanges) != expected {
		t.Errorf("%s: expected %d exchanges, got %d", context, expected, len(exchanges))
	}
	return exchanges
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

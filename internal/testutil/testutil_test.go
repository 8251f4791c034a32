package testutil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/FlowMentor/internal/models"
	"github.com/BTreeMap/FlowMentor/internal/store"
)

func TestFakeProvider(t *testing.T) {
	p := &FakeProvider{ProviderName: "fake", Reply: "hi"}
	msgs := []models.ChatMessage{{Role: models.RoleUser, Content: "q"}}
	out, err := p.Complete(context.Background(), msgs)
	if err != nil || out != "hi" {
		t.Fatalf("unexpected reply %q, %v", out, err)
	}
	msgs[0].Content = "mutated"
	if p.Calls() != 1 || p.LastMessages()[0].Content != "q" {
		t.Errorf("expected recorded copy of messages, got %+v", p.LastMessages())
	}

	failing := &FakeProvider{ProviderName: "down", Err: errors.New("503")}
	if _, err := failing.Complete(context.Background(), nil); err == nil {
		t.Error("expected scripted error")
	}
}

func TestNewTestKnowledgeBase(t *testing.T) {
	kb := NewTestKnowledgeBase()
	if kb.Len() != 2 {
		t.Errorf("expected 2 concepts, got %d", kb.Len())
	}
	if got := kb.Retrieve("递归怎么写"); len(got) != 1 {
		t.Errorf("expected recursion concept to match, got %d", len(got))
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.Write(MustMarshalJSON(t, models.Success(map[string]int{"concepts": 2})))
	resp := AssertJSONResponse(t, rr, models.APIStatusOK)
	if _, ok := resp["result"]; !ok {
		t.Error("expected result field")
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/api/chat", "{bad")
	body, _ := io.ReadAll(req.Body)
	if string(body) != "{bad" {
		t.Errorf("expected raw string body, got %q", body)
	}

	req = CreateHTTPRequest(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: "hi"})
	var decoded models.ChatRequest
	body, _ = io.ReadAll(req.Body)
	MustUnmarshalJSON(t, body, &decoded)
	if decoded.Message != "hi" || req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected request: %+v %v", decoded, req.Header)
	}
}

func TestAssertExchangeCount(t *testing.T) {
	st := store.NewInMemoryStore()
	_ = st.AddExchange(context.Background(), store.Exchange{Message: "a"})
	got := AssertExchangeCount(t, st, 1, "after one write")
	if got[0].Message != "a" {
		t.Errorf("unexpected exchange %+v", got[0])
	}
	AssertHTTPStatus(t, http.StatusOK, http.StatusOK, "status")
}

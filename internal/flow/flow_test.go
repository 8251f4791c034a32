package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/BTreeMap/FlowMentor/internal/genai"
	"github.com/BTreeMap/FlowMentor/internal/mentor"
	"github.com/BTreeMap/FlowMentor/internal/models"
	"github.com/BTreeMap/FlowMentor/internal/store"
	"github.com/BTreeMap/FlowMentor/internal/testutil"
)

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) AddExchange(context.Context, store.Exchange) error {
	return errors.New("disk full")
}

func (failingStore) ListExchanges(context.Context, int) ([]store.Exchange, error) {
	return nil, errors.New("disk full")
}

func (failingStore) Close() error { return nil }

func newFlow(st store.Store, providers ...genai.Provider) *TutorFlow {
	var gen Generator
	if len(providers) > 0 {
		gen = genai.NewChain(providers)
	}
	return NewTutorFlow(mentor.NewEngine(), testutil.NewTestKnowledgeBase(), gen, st)
}

func TestHandleChat_NoProvidersUsesSimulation(t *testing.T) {
	st := store.NewInMemoryStore()
	f := newFlow(st)

	p, err := f.HandleChat(context.Background(), "  递归怎么理解  ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Source != models.SourceSimulation {
		t.Errorf("expected simulation source, got %q", p.Source)
	}
	if p.LLMErrors != nil {
		t.Errorf("expected no llm_errors without providers, got %v", p.LLMErrors)
	}
	if !strings.HasPrefix(p.Response, "递归是函数在执行过程中调用自身的编程技巧。") {
		t.Errorf("expected definition-based answer, got %q", p.Response)
	}
	if p.Analysis.KnowledgeUsed == nil || *p.Analysis.KnowledgeUsed != "递归" {
		t.Errorf("expected knowledge_used 递归, got %v", p.Analysis.KnowledgeUsed)
	}

	exchanges := testutil.AssertExchangeCount(t, st, 1, "after simulated answer")
	if exchanges[0].Message != "递归怎么理解" || exchanges[0].Source != models.SourceSimulation {
		t.Errorf("unexpected exchange %+v", exchanges[0])
	}
}

func TestHandleChat_PanicScenario(t *testing.T) {
	p, err := newFlow(nil).HandleChat(context.Background(), "这题太难了，救命", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Analysis.Zone != models.ZonePanic || p.Strategy != models.StrategyEmpathyDeconstruct {
		t.Errorf("expected Panic/EMPATHY_DECONSTRUCT, got %s/%s", p.Analysis.Zone, p.Strategy)
	}
	if p.Radar.Anxiety < 60 {
		t.Errorf("expected anxiety >= 60, got %d", p.Radar.Anxiety)
	}
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	st := store.NewInMemoryStore()
	provider := &testutil.FakeProvider{ProviderName: "moonshot", Reply: testutil.StructuredReply}
	f := newFlow(st, provider)

	for _, msg := range []string{"", "   ", "\n\t"} {
		if _, err := f.HandleChat(context.Background(), msg, nil); !errors.Is(err, models.ErrMessageRequired) {
			t.Errorf("HandleChat(%q): expected ErrMessageRequired, got %v", msg, err)
		}
	}
	if provider.Calls() != 0 {
		t.Error("expected no provider calls for invalid input")
	}
	testutil.AssertExchangeCount(t, st, 0, "after rejected input")
}

func TestHandleChat_FailoverToSecondProvider(t *testing.T) {
	st := store.NewInMemoryStore()
	first := &testutil.FakeProvider{ProviderName: "moonshot", Err: errors.New("401 unauthorized")}
	second := &testutil.FakeProvider{ProviderName: "google", Reply: testutil.StructuredReply}
	third := &testutil.FakeProvider{ProviderName: "openai", Reply: "unused"}
	f := newFlow(st, first, second, third)

	history := []models.HistoryEntry{
		{Role: models.RoleUser, Content: "你好"},
		{Role: models.RoleAssistant, Response: &models.HistoryResponse{Content: "你好！"}},
	}
	p, err := f.HandleChat(context.Background(), "递归是什么", history)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != "google" {
		t.Errorf("expected source google, got %q", p.Source)
	}
	if diff := cmp.Diff([]string{"moonshot provider failed: 401 unauthorized"}, p.LLMErrors); diff != "" {
		t.Errorf("llm_errors mismatch (-want +got):\n%s", diff)
	}
	if p.MicroAction != "写出阶乘函数的终止条件" || p.Strategy != models.StrategySocraticGuide {
		t.Errorf("expected structured reply fields, got %+v", p)
	}
	if third.Calls() != 0 {
		t.Error("expected third provider not to be called")
	}

	msgs := second.LastMessages()
	if len(msgs) != 4 {
		t.Fatalf("expected system + 2 history + user messages, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "递归是函数在执行过程中调用自身的编程技巧。") {
		t.Error("expected retrieved knowledge in the system prompt")
	}
	if msgs[2].Content != "你好！" || msgs[3].Content != "递归是什么" {
		t.Errorf("unexpected conversation %+v", msgs[1:])
	}

	exchanges := testutil.AssertExchangeCount(t, st, 1, "after provider answer")
	if exchanges[0].Source != "google" || len(exchanges[0].ProviderErrors) != 1 {
		t.Errorf("unexpected exchange %+v", exchanges[0])
	}
}

func TestHandleChat_AllProvidersFail(t *testing.T) {
	f := newFlow(nil,
		&testutil.FakeProvider{ProviderName: "moonshot", Err: errors.New("timeout")},
		&testutil.FakeProvider{ProviderName: "openai", Err: errors.New("connection refused")},
	)
	p, err := f.HandleChat(context.Background(), "bug 怎么调试", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != models.SourceSimulation {
		t.Errorf("expected simulation after total failure, got %q", p.Source)
	}
	want := []string{"moonshot provider failed: timeout", "openai provider failed: connection refused"}
	if diff := cmp.Diff(want, p.LLMErrors); diff != "" {
		t.Errorf("llm_errors mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleChat_UnstructuredReply(t *testing.T) {
	f := newFlow(nil, &testutil.FakeProvider{ProviderName: "moonshot", Reply: "递归就是自己调用自己。"})
	p, err := f.HandleChat(context.Background(), "递归", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != models.SourceAPIFallback || p.Debug != models.DebugParseFailedUsingText {
		t.Errorf("expected salvaged text tags, got source=%q debug=%q", p.Source, p.Debug)
	}
	if p.Response != "递归就是自己调用自己。" {
		t.Errorf("unexpected response %q", p.Response)
	}
	if p.LLMErrors != nil {
		t.Errorf("expected no llm_errors, got %v", p.LLMErrors)
	}
}

func TestHandleChat_EmptyReply(t *testing.T) {
	f := newFlow(nil, &testutil.FakeProvider{ProviderName: "moonshot", Reply: "  "})
	p, err := f.HandleChat(context.Background(), "递归", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != models.SourceSimulation || p.Debug != models.DebugParseErrorNoContent {
		t.Errorf("expected simulation with parse error tag, got source=%q debug=%q", p.Source, p.Debug)
	}
}

func TestHandleChat_StoreFailureIsNotSurfaced(t *testing.T) {
	f := newFlow(failingStore{})
	p, err := f.HandleChat(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("expected store failure to be swallowed, got %v", err)
	}
	if p.Response == "" {
		t.Error("expected an answer despite store failure")
	}
}

func TestNewTutorFlow_NilDependencies(t *testing.T) {
	f := NewTutorFlow(nil, nil, nil, nil)
	p, err := f.HandleChat(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != models.SourceSimulation || f.Knowledge().Len() != 0 {
		t.Errorf("unexpected payload %+v", p)
	}
}

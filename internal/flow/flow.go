// Package flow runs the FlowMentor chat pipeline: retrieval, state inference,
// prompt construction, provider failover and response normalization.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/FlowMentor/internal/genai"
	"github.com/BTreeMap/FlowMentor/internal/knowledge"
	"github.com/BTreeMap/FlowMentor/internal/mentor"
	"github.com/BTreeMap/FlowMentor/internal/metrics"
	"github.com/BTreeMap/FlowMentor/internal/models"
	"github.com/BTreeMap/FlowMentor/internal/store"
)

// exchangeWriteTimeout bounds recording an exchange after the answer is ready.
const exchangeWriteTimeout = 5 * time.Second

// Generator produces raw provider text for a conversation. *genai.Chain implements it.
type Generator interface {
	Available() bool
	Names() []string
	Generate(ctx context.Context, messages []models.ChatMessage) (genai.Result, error)
}

// TutorFlow answers chat turns. It holds no per-request state and is safe for concurrent use.
type TutorFlow struct {
	engine    *mentor.Engine
	knowledge *knowledge.Base
	generator Generator
	exchanges store.Store
}

// NewTutorFlow creates a pipeline. generator and exchanges may be nil: without
// a generator every answer is synthesized locally, and without a store no
// exchanges are recorded.
func NewTutorFlow(engine *mentor.Engine, kb *knowledge.Base, generator Generator, exchanges store.Store) *TutorFlow {
	if engine == nil {
		engine = mentor.NewEngine()
	}
	if kb == nil {
		kb = knowledge.NewBase(nil)
	}
	slog.Debug("TutorFlow.NewTutorFlow: creating flow", "concepts", kb.Len(), "hasGenerator", generator != nil && generator.Available(), "hasStore", exchanges != nil)
	return &TutorFlow{engine: engine, knowledge: kb, generator: generator, exchanges: exchanges}
}

// Knowledge returns the knowledge base the flow retrieves from.
func (f *TutorFlow) Knowledge() *knowledge.Base { return f.knowledge }

// Providers returns the configured provider names in priority order.
func (f *TutorFlow) Providers() []string {
	if f.generator == nil {
		return []string{}
	}
	return f.generator.Names()
}

// HandleChat answers one chat turn. The only error is models.ErrMessageRequired;
// provider failures degrade to local synthesis and are reported in the payload.
func (f *TutorFlow) HandleChat(ctx context.Context, message string, history []models.HistoryEntry) (models.ResponsePayload, error) {
	req := models.ChatRequest{Message: message, History: history}
	if err := req.Validate(); err != nil {
		return models.ResponsePayload{}, err
	}
	userText := strings.TrimSpace(message)

	concepts := f.knowledge.Retrieve(userText)
	contextText := knowledge.FormatContext(concepts)
	bundle := f.engine.Analyze(userText, history, concepts)
	systemPrompt := mentor.BuildSystemPrompt(contextText)
	slog.Debug("TutorFlow.HandleChat: analysis complete", "concepts", len(concepts), "emotion", bundle.Analysis.Emotion, "zone", bundle.Analysis.Zone, "strategy", bundle.Strategy)

	var (
		payload   models.ResponsePayload
		answered  bool
		llmErrors []string
	)
	if f.generator != nil && f.generator.Available() {
		result, err := f.generator.Generate(ctx, BuildMessages(systemPrompt, history, userText))
		llmErrors = result.Errors
		if err != nil {
			if errors.Is(err, genai.ErrAllProvidersFailed) {
				slog.Warn("TutorFlow.HandleChat: external LLM unavailable, degrading to local mode", "error", err)
			} else {
				slog.Error("TutorFlow.HandleChat: provider chain error, degrading to local mode", "error", err)
			}
		} else {
			normalized := f.engine.Normalize(result.Text, bundle, concepts, userText)
			payload = normalized.Payload
			if normalized.Parsed {
				payload.Source = result.Provider
			}
			answered = true
		}
	}

	if !answered {
		payload = f.engine.SimulateResponse(userText, concepts, bundle)
	}
	if len(llmErrors) > 0 {
		payload.LLMErrors = llmErrors
	}

	metrics.ObserveResponse(payload.Source, string(payload.Analysis.Zone))
	f.recordExchange(ctx, userText, payload)
	return payload, nil
}

// recordExchange appends the answered turn to the exchange log. Failures are logged only.
func (f *TutorFlow) recordExchange(ctx context.Context, userText string, payload models.ResponsePayload) {
	if f.exchanges == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeWriteTimeout)
	defer cancel()

	err := f.exchanges.AddExchange(ctx, store.Exchange{
		Message:        userText,
		Emotion:        string(payload.Analysis.Emotion),
		Zone:           string(payload.Analysis.Zone),
		Strategy:       string(payload.Strategy),
		Source:         payload.Source,
		ProviderErrors: payload.LLMErrors,
	})
	if err != nil {
		metrics.ExchangeStoreErrors.Inc()
		slog.Warn("TutorFlow.recordExchange: failed to record exchange", "error", err)
	}
}

package mentor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/BTreeMap/FlowMentor/internal/knowledge"
	"github.com/BTreeMap/FlowMentor/internal/models"
)

// MaxSalvagedResponseLength caps, in characters, a provider answer recovered from unstructured text.
const MaxSalvagedResponseLength = 2000

const (
	jsonFence = "```json"
	fence     = "```"
)

// RequiredKeys lists the top-level keys a structured provider reply must carry.
var RequiredKeys = []string{"response", "microAction", "analysis", "radar", "strategy"}

var (
	// ErrMissingKeys indicates a structured reply lacked one of RequiredKeys.
	ErrMissingKeys = errors.New("missing keys in LLM response")
	// ErrEmptyResponse indicates a structured reply carried an empty response text.
	ErrEmptyResponse = errors.New("empty response in LLM response")
)

// NormalizeResult is the outcome of Normalize.
type NormalizeResult struct {
	Payload models.ResponsePayload
	// Parsed is true when the provider returned valid structured output.
	Parsed bool
}

// radarReply accepts fractional scores; they are rounded and clamped.
type radarReply struct {
	Anxiety       float64 `json:"anxiety"`
	CognitiveLoad float64 `json:"cognitiveLoad"`
	Challenge     float64 `json:"challenge"`
	Understanding float64 `json:"understanding"`
	Engagement    float64 `json:"engagement"`
}

func (r radarReply) toRadar() models.Radar {
	return models.Radar{
		Anxiety:       roundScore(r.Anxiety),
		CognitiveLoad: roundScore(r.CognitiveLoad),
		Challenge:     roundScore(r.Challenge),
		Understanding: roundScore(r.Understanding),
		Engagement:    roundScore(r.Engagement),
	}.Clamped()
}

func roundScore(v float64) int {
	switch {
	case math.IsNaN(v):
		return models.RadarMin
	case v <= models.RadarMin:
		return models.RadarMin
	case v >= models.RadarMax:
		return models.RadarMax
	}
	return int(math.Round(v))
}

type structuredReply struct {
	Response    string          `json:"response"`
	MicroAction string          `json:"microAction"`
	Analysis    models.Analysis `json:"analysis"`
	Radar       radarReply      `json:"radar"`
	Strategy    models.Strategy `json:"strategy"`
}

// Normalize turns raw provider text into a ResponsePayload. It never fails:
// structured replies are validated and returned, unstructured text is salvaged
// as the answer, and empty text or an empty structured answer falls back to
// local synthesis.
func (e *Engine) Normalize(raw string, fallback models.Bundle, context []knowledge.Concept, userText string) NormalizeResult {
	payload, err := parseStructured(extractCandidate(strings.TrimSpace(raw)), fallback)
	if err == nil {
		return NormalizeResult{Payload: payload, Parsed: true}
	}
	if errors.Is(err, ErrEmptyResponse) {
		slog.Warn("mentor.Normalize: structured reply carried no answer, using local simulation")
		return e.simulateNoContent(fallback, context, userText)
	}
	slog.Warn("mentor.Normalize: LLM JSON parse failed, recovering from raw text", "error", err, "rawLength", len(raw))

	if text := salvageText(raw); text != "" {
		slog.Info("mentor.Normalize: using raw provider text as the answer", "length", len([]rune(text)))
		return NormalizeResult{Payload: models.ResponsePayload{
			Response:    text,
			MicroAction: "",
			Analysis:    fallback.Analysis,
			Radar:       fallback.Radar,
			Strategy:    fallback.Strategy,
			Source:      models.SourceAPIFallback,
			Debug:       models.DebugParseFailedUsingText,
		}}
	}

	slog.Warn("mentor.Normalize: provider returned no usable content, using local simulation")
	return e.simulateNoContent(fallback, context, userText)
}

func (e *Engine) simulateNoContent(fallback models.Bundle, context []knowledge.Concept, userText string) NormalizeResult {
	if userText == "" {
		userText = ParseErrorQuestion
	}
	simulated := e.SimulateResponse(userText, context, fallback)
	simulated.Debug = models.DebugParseErrorNoContent
	return NormalizeResult{Payload: simulated}
}

// extractCandidate returns the contents of the first fenced block, preferring a json-tagged fence.
func extractCandidate(cleaned string) string {
	if i := strings.Index(cleaned, jsonFence); i >= 0 {
		return untilFence(cleaned[i+len(jsonFence):])
	}
	if i := strings.Index(cleaned, fence); i >= 0 {
		body := untilFence(cleaned[i+len(fence):])
		// Skip a language tag such as "javascript" on the opening fence line.
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(body[:nl]); tag != "" && !strings.ContainsAny(tag, "{[ \t") {
				body = body[nl+1:]
			}
		}
		return body
	}
	return cleaned
}

func untilFence(s string) string {
	if j := strings.Index(s, fence); j >= 0 {
		return s[:j]
	}
	return s
}

func parseStructured(candidate string, fallback models.Bundle) (models.ResponsePayload, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
		return models.ResponsePayload{}, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, k := range RequiredKeys {
		v, ok := keys[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return models.ResponsePayload{}, fmt.Errorf("%w: %s", ErrMissingKeys, k)
		}
	}

	var reply structuredReply
	if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
		return models.ResponsePayload{}, fmt.Errorf("unexpected field types: %w", err)
	}
	if strings.TrimSpace(reply.Response) == "" {
		return models.ResponsePayload{}, ErrEmptyResponse
	}

	strategy := reply.Strategy
	if !models.IsValidStrategy(strategy) {
		strategy = fallback.Strategy
	}
	return models.ResponsePayload{
		Response:    reply.Response,
		MicroAction: reply.MicroAction,
		Analysis:    repairAnalysis(reply.Analysis, fallback.Analysis),
		Radar:       reply.Radar.toRadar(),
		Strategy:    strategy,
	}, nil
}

// salvageText strips markdown header and fence lines from a reply that opens
// with one, then truncates it to MaxSalvagedResponseLength characters.
func salvageText(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "#") || strings.HasPrefix(text, fence) {
		lines := strings.Split(text, "\n")
		kept := lines[:0]
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, fence) {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	if runes := []rune(text); len(runes) > MaxSalvagedResponseLength {
		text = string(runes[:MaxSalvagedResponseLength])
	}
	return text
}

// repairAnalysis replaces labels outside the known enums with the locally inferred ones.
func repairAnalysis(got, fallback models.Analysis) models.Analysis {
	if !models.IsValidEmotion(got.Emotion) {
		got.Emotion = fallback.Emotion
	}
	if !models.IsValidZone(got.Zone) {
		got.Zone = fallback.Zone
	}
	if !models.IsValidLevel(got.UnderstandingLevel) {
		got.UnderstandingLevel = fallback.UnderstandingLevel
	}
	return got
}

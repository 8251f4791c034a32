package mentor

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/FlowMentor/internal/knowledge"
	"github.com/BTreeMap/FlowMentor/internal/models"
)

const (
	analogyTemplate  = "可以用%s来类比理解。"
	degradedTemplate = "抱歉，关于「%s」这个问题，我暂时无法给出完整回答。这可能是API调用失败导致的降级模式。请检查网络连接或API配置。"
	// ParseErrorQuestion stands in for the question when the user text is unavailable.
	ParseErrorQuestion = "解析错误，请重试"
)

// SimulateResponse builds a fully local answer from the first retrieved concept.
// Without usable knowledge it returns the degraded-mode apology naming the question.
func (e *Engine) SimulateResponse(text string, context []knowledge.Concept, bundle models.Bundle) models.ResponsePayload {
	return models.ResponsePayload{
		Response:    directAnswer(text, context),
		MicroAction: "",
		Analysis:    bundle.Analysis,
		Radar:       bundle.Radar,
		Strategy:    bundle.Strategy,
		Source:      models.SourceSimulation,
	}
}

func directAnswer(text string, context []knowledge.Concept) string {
	if len(context) > 0 {
		concept := context[0]
		var parts []string
		if concept.Definition != "" {
			parts = append(parts, concept.Definition)
		}
		if len(concept.Analogies) > 0 && len(parts) < 2 {
			parts = append(parts, fmt.Sprintf(analogyTemplate, concept.Analogies[0]))
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return fmt.Sprintf(degradedTemplate, text)
}

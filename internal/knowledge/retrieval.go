package knowledge

import (
	"strings"
)

// Context formatting constants.
const (
	// NoMatchContext is rendered when no concept matched the input.
	NoMatchContext = "无匹配的知识库条目。"
	// MaxContextConcepts caps how many matched concepts are rendered into the prompt.
	MaxContextConcepts = 3

	contextHeader      = "相关知识库片段："
	noStrategiesMarker = "无"
	maxListItems       = 2
)

// Retrieve returns the concepts whose keywords occur in text, in base order.
// Matching is a case-insensitive substring test, so "bug" also matches
// "Debugging". Empty keywords never match.
func (b *Base) Retrieve(text string) []Concept {
	return Retrieve(text, b.Concepts())
}

// Retrieve is the stateless form of Base.Retrieve.
func Retrieve(text string, concepts []Concept) []Concept {
	lowered := strings.ToLower(text)
	var matched []Concept
	for _, c := range concepts {
		for _, kw := range c.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(kw)) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched
}

// FormatContext renders matched concepts as the knowledge block embedded in the system prompt.
func FormatContext(concepts []Concept) string {
	if len(concepts) == 0 {
		return NoMatchContext
	}

	lines := []string{contextHeader}
	for i, c := range concepts {
		if i >= MaxContextConcepts {
			break
		}
		strategies := noStrategiesMarker
		if len(c.PsychologyStrategies) > 0 {
			strategies = joinFirst(c.PsychologyStrategies, maxListItems)
		}
		lines = append(lines,
			"- 概念: "+joinFirst(c.Keywords, maxListItems)+
				"\n  定义: "+c.Definition+
				"\n  类比: "+joinFirst(c.Analogies, maxListItems)+
				"\n  心理策略: "+strategies)
	}
	return strings.Join(lines, "\n")
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

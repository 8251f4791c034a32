// Package mentor implements FlowMentor's learner-state heuristics: keyword-based
// emotion classification, radar estimation, zone and strategy selection, the
// system prompt, local answer synthesis and provider response repair.
//
// Everything here is a pure function of its inputs; an Engine holds only
// immutable tables and is safe for concurrent use.
package mentor

import (
	"strings"

	"github.com/BTreeMap/FlowMentor/internal/knowledge"
	"github.com/BTreeMap/FlowMentor/internal/models"
)

// Cognition tags.
const (
	CognitionSteady          = "steady"
	CognitionOverload        = "overload"
	CognitionSeekingShortcut = "seeking_shortcut"
	CognitionBlocked         = "blocked"
	CognitionExploring       = "exploring"
)

// Outcome is the classification a rule assigns when it fires.
type Outcome struct {
	Emotion   models.Emotion
	Cognition string
	Level     models.UnderstandingLevel
}

// Rule is one entry of the ordered emotion classifier.
type Rule struct {
	Name     string
	Keywords []string
	Outcome  Outcome
}

// Matches reports whether any keyword occurs in the already lowercased text.
func (r Rule) Matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// DefaultOutcome applies when no rule fires.
var DefaultOutcome = Outcome{
	Emotion:   models.EmotionFlow,
	Cognition: CognitionSteady,
	Level:     models.LevelIntermediate,
}

// DefaultRules is the classifier in priority order: panic > boredom > frustration > curiosity.
// The first matching rule wins.
var DefaultRules = []Rule{
	{
		Name:     "panic",
		Keywords: []string{"难", "不懂", "放弃", "救命", "崩溃", "太复杂", "hard", "fail", "stupid"},
		Outcome:  Outcome{Emotion: models.EmotionAnxiety, Cognition: CognitionOverload, Level: models.LevelBeginner},
	},
	{
		Name:     "boredom",
		Keywords: []string{"简单", "无聊", "快点", "答案", "帮我写", "easy"},
		Outcome:  Outcome{Emotion: models.EmotionBoredom, Cognition: CognitionSeekingShortcut, Level: models.LevelAdvanced},
	},
	{
		Name:     "frustration",
		Keywords: []string{"bug", "error", "又错", "还是不行", "烦", "卡住"},
		Outcome:  Outcome{Emotion: models.EmotionFrustration, Cognition: CognitionBlocked, Level: models.LevelIntermediate},
	},
	{
		Name:     "curiosity",
		Keywords: []string{"为什么", "怎么", "原理", "底层", "why", "how", "what if"},
		Outcome:  Outcome{Emotion: models.EmotionCuriosity, Cognition: CognitionExploring, Level: models.LevelAdvanced},
	},
}

// Engine derives an analysis bundle from a message, its history and retrieved knowledge.
type Engine struct {
	rules    []Rule
	baseline models.Radar
	deltas   map[models.Emotion]models.Radar
}

// NewEngine creates an Engine with the default rules and radar tables.
func NewEngine() *Engine {
	return &Engine{
		rules:    DefaultRules,
		baseline: BaselineRadar,
		deltas:   EmotionDeltas,
	}
}

// Classify runs the ordered rules over text and returns the first matching outcome.
func (e *Engine) Classify(text string) Outcome {
	lowered := strings.ToLower(text)
	for _, rule := range e.rules {
		if rule.Matches(lowered) {
			return rule.Outcome
		}
	}
	return DefaultOutcome
}

// Analyze infers the learner's state for one turn.
func (e *Engine) Analyze(text string, history []models.HistoryEntry, context []knowledge.Concept) models.Bundle {
	outcome := e.Classify(text)

	recentZone, _ := models.RecentZone(history)
	radar := e.EstimateRadar(outcome.Emotion, recentZone)
	zone := DeduceZone(radar, outcome.Cognition)

	return models.Bundle{
		Analysis: models.Analysis{
			Emotion:            outcome.Emotion,
			Zone:               zone,
			UnderstandingLevel: outcome.Level,
			KnowledgeUsed:      pickConceptName(context),
			Cognition:          outcome.Cognition,
		},
		Radar:    radar,
		Strategy: models.StrategyForZone(zone),
	}
}

// pickConceptName names the first retrieved concept by its first keyword, or its definition.
func pickConceptName(context []knowledge.Concept) *string {
	if len(context) == 0 {
		return nil
	}
	name := context[0].Definition
	if len(context[0].Keywords) > 0 {
		name = context[0].Keywords[0]
	}
	return &name
}

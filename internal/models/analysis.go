package models

// Emotion is the coarse emotional label inferred from a user message.
type Emotion string

const (
	EmotionFlow        Emotion = "Flow"
	EmotionAnxiety     Emotion = "Anxiety"
	EmotionBoredom     Emotion = "Boredom"
	EmotionFrustration Emotion = "Frustration"
	EmotionCuriosity   Emotion = "Curiosity"
)

// Zone is the pedagogical mode that drives the response strategy.
type Zone string

const (
	ZonePanic    Zone = "Panic"
	ZoneBoredom  Zone = "Boredom"
	ZoneLearning Zone = "Learning"
)

// UnderstandingLevel is the learner's estimated level for the current turn.
type UnderstandingLevel string

const (
	LevelBeginner     UnderstandingLevel = "Beginner"
	LevelIntermediate UnderstandingLevel = "Intermediate"
	LevelAdvanced     UnderstandingLevel = "Advanced"
)

// Strategy is the tutoring approach selected for a zone.
type Strategy string

const (
	// StrategyEmpathyDeconstruct calms the learner and breaks the problem down.
	StrategyEmpathyDeconstruct Strategy = "EMPATHY_DECONSTRUCT"
	// StrategyChallengeRedirect raises the difficulty for a disengaged learner.
	StrategyChallengeRedirect Strategy = "CHALLENGE_REDIRECT"
	// StrategySocraticGuide follows up with questions while the learner is in flow.
	StrategySocraticGuide Strategy = "SOCRATIC_GUIDE"
)

// IsValidEmotion checks if the given emotion is one of the known emotions.
func IsValidEmotion(e Emotion) bool {
	switch e {
	case EmotionFlow, EmotionAnxiety, EmotionBoredom, EmotionFrustration, EmotionCuriosity:
		return true
	default:
		return false
	}
}

// IsValidZone checks if the given zone is one of the known zones.
func IsValidZone(z Zone) bool {
	switch z {
	case ZonePanic, ZoneBoredom, ZoneLearning:
		return true
	default:
		return false
	}
}

// IsValidLevel checks if the given understanding level is one of the known levels.
func IsValidLevel(l UnderstandingLevel) bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	default:
		return false
	}
}

// IsValidStrategy checks if the given strategy is one of the known strategies.
func IsValidStrategy(s Strategy) bool {
	switch s {
	case StrategyEmpathyDeconstruct, StrategyChallengeRedirect, StrategySocraticGuide:
		return true
	default:
		return false
	}
}

// StrategyForZone maps a zone to its strategy. Unknown zones get the Socratic guide.
func StrategyForZone(z Zone) Strategy {
	switch z {
	case ZonePanic:
		return StrategyEmpathyDeconstruct
	case ZoneBoredom:
		return StrategyChallengeRedirect
	default:
		return StrategySocraticGuide
	}
}

// Radar bounds.
const (
	RadarMin = 0
	RadarMax = 100
)

// Radar is the five-dimension learner state. Every value lies in [RadarMin, RadarMax].
type Radar struct {
	Anxiety       int `json:"anxiety"`
	CognitiveLoad int `json:"cognitiveLoad"`
	Challenge     int `json:"challenge"`
	Understanding int `json:"understanding"`
	Engagement    int `json:"engagement"`
}

// Clamped returns a copy of r with every dimension bounded to [RadarMin, RadarMax].
func (r Radar) Clamped() Radar {
	return Radar{
		Anxiety:       clampScore(r.Anxiety),
		CognitiveLoad: clampScore(r.CognitiveLoad),
		Challenge:     clampScore(r.Challenge),
		Understanding: clampScore(r.Understanding),
		Engagement:    clampScore(r.Engagement),
	}
}

func clampScore(v int) int {
	if v < RadarMin {
		return RadarMin
	}
	if v > RadarMax {
		return RadarMax
	}
	return v
}

// Analysis is the per-request result of state inference.
type Analysis struct {
	Emotion            Emotion            `json:"emotion"`
	Zone               Zone               `json:"zone"`
	UnderstandingLevel UnderstandingLevel `json:"understanding_level"`
	KnowledgeUsed      *string            `json:"knowledge_used"` // null when no concept matched
	Cognition          string             `json:"cognition"`
}

// Bundle groups the analysis, radar and strategy derived for one request.
type Bundle struct {
	Analysis Analysis `json:"analysis"`
	Radar    Radar    `json:"radar"`
	Strategy Strategy `json:"strategy"`
}

// Payload sources that are not provider names.
const (
	SourceSimulation  = "simulation"
	SourceAPIFallback = "api_fallback"
)

// Diagnostic tags attached to repaired payloads.
const (
	DebugParseFailedUsingText = "json_parse_failed_but_using_text"
	DebugParseErrorNoContent  = "llm_parse_error_no_content"
)

// ResponsePayload is the canonical response returned for a chat request.
type ResponsePayload struct {
	Response    string   `json:"response"`
	MicroAction string   `json:"microAction"`
	Analysis    Analysis `json:"analysis"`
	Radar       Radar    `json:"radar"`
	Strategy    Strategy `json:"strategy"`
	Source      string   `json:"source"`
	LLMErrors   []string `json:"llm_errors,omitempty"`
	Debug       string   `json:"debug,omitempty"`
}

package mentor

import "github.com/BTreeMap/FlowMentor/internal/models"

// BaselineRadar is the starting state before emotion deltas are applied.
var BaselineRadar = models.Radar{
	Anxiety:       25,
	CognitiveLoad: 35,
	Challenge:     55,
	Understanding: 45,
	Engagement:    60,
}

// EmotionDeltas are additive adjustments to the baseline per emotion. Flow has none.
var EmotionDeltas = map[models.Emotion]models.Radar{
	models.EmotionAnxiety:     {Anxiety: 35, CognitiveLoad: 20, Understanding: -15, Engagement: -10},
	models.EmotionBoredom:     {Challenge: -25, Engagement: -20, CognitiveLoad: -10},
	models.EmotionFrustration: {Anxiety: 15, Challenge: 10, CognitiveLoad: 15},
	models.EmotionCuriosity:   {Challenge: 5, Understanding: 10, Engagement: 15, Anxiety: -10},
}

// Zone thresholds.
const (
	panicAnxietyThreshold   = 60
	boredomChallengeCeiling = 30
	// repeatedPanicBonus is added to anxiety when an anxious turn follows a Panic turn.
	repeatedPanicBonus = 10
)

// EstimateRadar applies the emotion's delta to the baseline and clamps the result.
func (e *Engine) EstimateRadar(emotion models.Emotion, recentZone models.Zone) models.Radar {
	radar := add(e.baseline, e.deltas[emotion])

	if recentZone == models.ZonePanic && emotion == models.EmotionAnxiety {
		radar.Anxiety += repeatedPanicBonus
	}

	return radar.Clamped()
}

// DeduceZone classifies a radar and cognition tag into a zone.
func DeduceZone(radar models.Radar, cognition string) models.Zone {
	if radar.Anxiety >= panicAnxietyThreshold || cognition == CognitionOverload {
		return models.ZonePanic
	}
	if radar.Challenge <= boredomChallengeCeiling || cognition == CognitionSeekingShortcut {
		return models.ZoneBoredom
	}
	return models.ZoneLearning
}

func add(a, b models.Radar) models.Radar {
	return models.Radar{
		Anxiety:       a.Anxiety + b.Anxiety,
		CognitiveLoad: a.CognitiveLoad + b.CognitiveLoad,
		Challenge:     a.Challenge + b.Challenge,
		Understanding: a.Understanding + b.Understanding,
		Engagement:    a.Engagement + b.Engagement,
	}
}

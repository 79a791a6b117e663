// Package recommend maps a dominant emotion to wellness suggestions and a
// playful "mind age" estimate.
package recommend

import (
	"fmt"
	"math"
	"strings"

	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/emotion"
)

// maturityWeights scale each emotion's share into the maturity score.
var maturityWeights = map[emotion.Emotion]float64{
	emotion.Happy:    0.15,
	emotion.Neutral:  0.20,
	emotion.Sad:      -0.05,
	emotion.Angry:    -0.15,
	emotion.Fear:     -0.10,
	emotion.Surprise: 0.05,
	emotion.Disgust:  -0.08,
}

const (
	minMindAge = 16
	maxMindAge = 50
	// ageScale turns the maturity score into years
	ageScale = 30

	personalityPlaceholder = "{personality_type}"
)

// Emotional intelligence levels.
const (
	EIHigh       = "High"
	EIModerate   = "Moderate"
	EIDeveloping = "Developing"
)

var eiDescriptions = map[string]string{
	EIHigh:       "Shows strong emotional regulation and balance",
	EIModerate:   "Demonstrates average emotional awareness",
	EIDeveloping: "Has room for growth in emotional regulation",
}

// fallbackProfile is used when the recommendation table has no usable profile.
var fallbackProfile = config.MindProfile{
	BaseAge:         25,
	AgeMin:          20,
	AgeMax:          35,
	PersonalityType: "Balanced Individual",
}

// MindAge is the result of the mind age estimate.
type MindAge struct {
	Age             int
	AgeMin          int
	AgeMax          int
	PersonalityType string
	EILevel         string
	EIDescription   string
	MaturityScore   float64
}

// MaturityScore is Σ pct/100 · weight over the known emotions. Unknown labels are ignored.
func MaturityScore(emotions map[string]float64) float64 {
	var score float64
	for label, pct := range emotions {
		if e, ok := emotion.Parse(label); ok {
			score += pct / 100 * maturityWeights[e]
		}
	}
	return score
}

// EstimateMindAge derives the mind age from the emotion shares and the profile
// of the dominant emotion.
func EstimateMindAge(emotions map[string]float64, profile config.MindProfile) MindAge {
	if profile.PersonalityType == "" {
		profile = fallbackProfile
	}

	score := MaturityScore(emotions)
	age := float64(profile.BaseAge) + score*ageScale
	age = min(max(age, minMindAge), maxMindAge)

	level := EIDeveloping
	switch {
	case score > 0.1:
		level = EIHigh
	case score > -0.05:
		level = EIModerate
	}

	return MindAge{
		Age:             int(math.RoundToEven(age)),
		AgeMin:          profile.AgeMin,
		AgeMax:          profile.AgeMax,
		PersonalityType: profile.PersonalityType,
		EILevel:         level,
		EIDescription:   eiDescriptions[level],
		MaturityScore:   math.Round(score*1000) / 1000,
	}
}

// Interpretation renders the summary sentence shown with the mind age.
func (m MindAge) Interpretation() string {
	return fmt.Sprintf(
		"Based on your emotional patterns, your psychological age appears to be around %d years, suggesting a %s emotional profile.",
		m.Age, strings.ToLower(m.PersonalityType),
	)
}

// Analysis converts the estimate into its API form.
func (m MindAge) Analysis() *api.MindAgeAnalysis {
	return &api.MindAgeAnalysis{
		EstimatedMindAge:      m.Age,
		AgeRange:              fmt.Sprintf("%d-%d years", m.AgeMin, m.AgeMax),
		PersonalityType:       m.PersonalityType,
		EmotionalIntelligence: m.EILevel,
		EIDescription:         m.EIDescription,
		Interpretation:        m.Interpretation(),
	}
}

// Build returns the recommendation payload for a dominant emotion. An empty
// emotion means neutral; an unknown one is echoed back but gets the neutral table.
func Build(cfg *config.Config, dominant string, emotions map[string]float64) *api.RecommendationsResponse {
	if strings.TrimSpace(dominant) == "" {
		dominant = string(emotion.Neutral)
	}
	key := dominant
	if e, ok := emotion.Parse(dominant); ok {
		key = string(e)
	}

	rec := cfg.GetRecommendation(key)
	mind := EstimateMindAge(emotions, rec.Profile)

	suggestions := make([]string, len(rec.Suggestions))
	for i, s := range rec.Suggestions {
		suggestions[i] = strings.ReplaceAll(s, personalityPlaceholder, strings.ToLower(mind.PersonalityType))
	}

	return &api.RecommendationsResponse{
		Response:        api.Response{Success: true},
		DominantEmotion: dominant,
		Recommendations: suggestions,
		GeneralTip:      cfg.Recommendations.GeneralTip,
		MindAgeAnalysis: mind.Analysis(),
	}
}

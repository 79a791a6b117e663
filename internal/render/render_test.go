package render

import (
	"strings"
	"testing"

	"github.com/kozaktomas/emotion-check/internal/api"
)

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"happy":    "Happy",
		"surprise": "Surprise",
		"":         "",
	}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDistribution_OrderedWithTotal(t *testing.T) {
	out := Distribution(map[string]float64{"neutral": 20, "happy": 70, "sad": 10})

	happy := strings.Index(out, "Happy")
	neutral := strings.Index(out, "Neutral")
	sad := strings.Index(out, "Sad")
	if happy < 0 || neutral < 0 || sad < 0 {
		t.Fatalf("expected all labels in output:\n%s", out)
	}
	if happy >= neutral || neutral >= sad {
		t.Errorf("expected rows ordered by percent:\n%s", out)
	}
	if !strings.Contains(out, "100.0%") {
		t.Errorf("expected total row:\n%s", out)
	}
	if strings.Contains(out, "Note:") {
		t.Errorf("did not expect an inconsistency note:\n%s", out)
	}
}

func TestDistribution_FlagsInconsistentTotal(t *testing.T) {
	out := Distribution(map[string]float64{"happy": 60, "sad": 30})

	if !strings.Contains(out, "90.0%") {
		t.Errorf("expected raw total to be shown:\n%s", out)
	}
	if !strings.Contains(out, "add up to 90.00%") {
		t.Errorf("expected inconsistency note:\n%s", out)
	}
}

func TestFrameResults(t *testing.T) {
	out := FrameResults([]api.FrameResult{
		{Frame: 1, Timestamp: "t1", DominantEmotion: "happy", Emotions: map[string]float64{"happy": 55.5}, Success: true},
		{Frame: 2, Timestamp: "t2", DominantEmotion: "neutral", Error: "no face detected"},
	})

	if !strings.Contains(out, "55.5%") {
		t.Errorf("expected dominant score:\n%s", out)
	}
	if !strings.Contains(out, "no face detected") {
		t.Errorf("expected failure reason:\n%s", out)
	}
}

func TestRecommendations(t *testing.T) {
	out := Recommendations(&api.RecommendationsResponse{
		DominantEmotion: "happy",
		Recommendations: []string{"Go outside", "Call a friend"},
		GeneralTip:      "Breathe",
		MindAgeAnalysis: &api.MindAgeAnalysis{
			EstimatedMindAge:      28,
			AgeRange:              "18-30",
			PersonalityType:       "Optimistic Young Adult",
			EmotionalIntelligence: "High",
			Interpretation:        "Your emotional patterns suggest a mind age of 28 years.",
		},
	})

	for _, want := range []string{"Dominant emotion: Happy", "28", "Optimistic Young Adult", "2. Call a friend", "Tip: Breathe", "mind age of 28"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAnalysis_MarksSimulatedScores(t *testing.T) {
	out := Analysis(&api.AnalyzeResponse{
		AverageEmotions:    map[string]float64{"neutral": 100},
		TotalFrames:        10,
		SuccessfulAnalyses: 9,
		Classifier:         "mock",
	})

	if !strings.Contains(out, "Analyzed 9 of 10 frames with the mock classifier (simulated scores)") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

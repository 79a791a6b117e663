package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/emotion-check/internal/api"
)

func TestRecommendationsHandler_Get(t *testing.T) {
	h := NewRecommendationsHandler(newTestService(t))
	recorder := httptest.NewRecorder()

	h.Get(recorder, jsonRequest(t, "/api/get-recommendations", api.RecommendationsRequest{
		DominantEmotion: "happy",
		Emotions:        map[string]float64{"happy": 100},
	}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result api.RecommendationsResponse
	parseJSONResponse(t, recorder, &result)
	if result.DominantEmotion != "happy" {
		t.Errorf("expected dominant 'happy', got '%s'", result.DominantEmotion)
	}
	if len(result.Recommendations) != 6 {
		t.Fatalf("expected 6 recommendations, got %d", len(result.Recommendations))
	}
	if !strings.Contains(result.Recommendations[5], "optimistic young adult") {
		t.Errorf("expected personality in last suggestion, got '%s'", result.Recommendations[5])
	}
	if result.GeneralTip == "" {
		t.Error("expected general tip")
	}
	if result.MindAgeAnalysis == nil {
		t.Fatal("expected mind age analysis")
	}
	if result.MindAgeAnalysis.PersonalityType != "Optimistic Young Adult" {
		t.Errorf("unexpected personality '%s'", result.MindAgeAnalysis.PersonalityType)
	}
}

func TestRecommendationsHandler_DefaultsToNeutral(t *testing.T) {
	h := NewRecommendationsHandler(newTestService(t))
	recorder := httptest.NewRecorder()

	h.Get(recorder, rawRequest("/api/get-recommendations", `{"emotions": {"neutral": 80, "sad": 20}}`))

	assertStatusCode(t, recorder, http.StatusOK)

	var result api.RecommendationsResponse
	parseJSONResponse(t, recorder, &result)
	if result.DominantEmotion != "neutral" {
		t.Errorf("expected dominant 'neutral', got '%s'", result.DominantEmotion)
	}
}

func TestRecommendationsHandler_NoData(t *testing.T) {
	h := NewRecommendationsHandler(newTestService(t))
	recorder := httptest.NewRecorder()

	h.Get(recorder, rawRequest("/api/get-recommendations", "{}"))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "No data received")
}

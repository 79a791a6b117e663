package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/emotion-check/internal/ai"
	"github.com/kozaktomas/emotion-check/internal/api"
)

// HealthHandler reports liveness and which classifier is active.
type HealthHandler struct {
	classifier ai.Classifier
}

func NewHealthHandler(classifier ai.Classifier) *HealthHandler {
	return &HealthHandler{classifier: classifier}
}

func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, api.HealthResponse{
		Response:            api.Response{Success: true},
		Status:              api.StatusHealthy,
		Message:             "Emotion Detection API is running",
		ClassifierAvailable: h.classifier.Real(),
		Classifier:          h.classifier.Name(),
		Timestamp:           time.Now().Format(time.RFC3339),
	})
}

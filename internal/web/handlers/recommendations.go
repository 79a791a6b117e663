package handlers

import (
	"net/http"

	"github.com/kozaktomas/emotion-check/internal/analysis"
	"github.com/kozaktomas/emotion-check/internal/api"
)

type RecommendationsHandler struct {
	service *analysis.Service
}

func NewRecommendationsHandler(service *analysis.Service) *RecommendationsHandler {
	return &RecommendationsHandler{service: service}
}

// Get returns suggestions and the mind-age analysis for a dominant emotion.
func (h *RecommendationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req api.RecommendationsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.service.Recommend(req.DominantEmotion, req.Emotions))
}

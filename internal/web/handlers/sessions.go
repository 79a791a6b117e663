package handlers

import (
	"fmt"
	"net/http"

	"github.com/kozaktomas/emotion-check/internal/analysis"
	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/rs/zerolog/log"
)

// SessionsHandler serves session creation, frame upload and analysis.
type SessionsHandler struct {
	service *analysis.Service
}

func NewSessionsHandler(service *analysis.Service) *SessionsHandler {
	return &SessionsHandler{service: service}
}

// Create starts a new session.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.CreateSession(r.Context())
	if err != nil {
		respondServiceError(w, err, "create session")
		return
	}
	respondJSON(w, http.StatusOK, api.CreateSessionResponse{
		Response:  api.Response{Success: true},
		SessionID: sess.ID,
		Message:   "Session created successfully",
	})
}

// UploadFrames stores the captured frames of a session.
func (h *SessionsHandler) UploadFrames(w http.ResponseWriter, r *http.Request) {
	var req api.UploadFramesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.service.UploadFrames(r.Context(), req.SessionID, req.Frames)
	if err != nil {
		log.Warn().Str("session", sanitizeForLog(req.SessionID)).Err(err).Msg("upload rejected")
		respondServiceError(w, err, "upload frames")
		return
	}
	respondJSON(w, http.StatusOK, api.UploadFramesResponse{
		Response:    api.Response{Success: true},
		FramesSaved: saved,
		Message:     fmt.Sprintf("Successfully saved %d frames", saved),
	})
}

// Analyze classifies every frame of a session.
func (h *SessionsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req api.AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Analyze(r.Context(), req.SessionID)
	if err != nil {
		respondServiceError(w, err, "analyze emotions")
		return
	}
	respondJSON(w, http.StatusOK, api.AnalyzeResponse{
		Response:           api.Response{Success: true},
		SessionID:          req.SessionID,
		Results:            result.Results,
		AverageEmotions:    result.AverageEmotions,
		DominantEmotion:    result.DominantEmotion,
		TotalFrames:        result.TotalFrames,
		SuccessfulAnalyses: result.SuccessfulAnalyses,
		ClassifierUsed:     result.ClassifierUsed,
		Classifier:         result.Classifier,
	})
}

// Package api defines the JSON payloads exchanged between the backend and its clients.
package api

// Response is embedded in every payload. Error is set when Success is false.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the payload signals an application level failure.
func (r Response) Failed() bool {
	return !r.Success
}

// ErrorMessage returns the server supplied error, if any.
func (r Response) ErrorMessage() string {
	return r.Error
}

// Health statuses.
const (
	StatusHealthy = "healthy"
)

type HealthResponse struct {
	Response
	Status              string `json:"status"`
	Message             string `json:"message"`
	ClassifierAvailable bool   `json:"classifier_available"`
	Classifier          string `json:"classifier"`
	Timestamp           string `json:"timestamp"`
}

type CreateSessionResponse struct {
	Response
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// Frame is one captured image. ImageData is a base64 data URL.
type Frame struct {
	FrameNumber int    `json:"frameNumber"`
	ImageData   string `json:"imageData"`
	Timestamp   string `json:"timestamp"`
	SessionID   string `json:"sessionId,omitempty"`
}

type UploadFramesRequest struct {
	SessionID string  `json:"session_id"`
	Frames    []Frame `json:"frames"`
}

type UploadFramesResponse struct {
	Response
	FramesSaved int    `json:"frames_saved"`
	Message     string `json:"message,omitempty"`
}

type AnalyzeRequest struct {
	SessionID string `json:"session_id"`
}

// FrameResult is the classification of one stored frame. A failed frame carries
// Error instead of Emotions.
type FrameResult struct {
	Frame           int                `json:"frame"`
	Timestamp       string             `json:"timestamp"`
	Filename        string             `json:"filename"`
	Emotions        map[string]float64 `json:"emotions,omitempty"`
	DominantEmotion string             `json:"dominant_emotion,omitempty"`
	Success         bool               `json:"success"`
	Error           string             `json:"error,omitempty"`
}

type AnalyzeResponse struct {
	Response
	SessionID          string             `json:"session_id"`
	Results            []FrameResult      `json:"results"`
	AverageEmotions    map[string]float64 `json:"average_emotions"`
	DominantEmotion    string             `json:"dominant_emotion"`
	TotalFrames        int                `json:"total_frames"`
	SuccessfulAnalyses int                `json:"successful_analyses"`
	ClassifierUsed     bool               `json:"classifier_used"`
	Classifier         string             `json:"classifier,omitempty"`
}

type RecommendationsRequest struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotions        map[string]float64 `json:"emotions"`
}

type MindAgeAnalysis struct {
	EstimatedMindAge      int    `json:"estimated_mind_age"`
	AgeRange              string `json:"age_range"`
	PersonalityType       string `json:"personality_type"`
	EmotionalIntelligence string `json:"emotional_intelligence"`
	EIDescription         string `json:"ei_description"`
	Interpretation        string `json:"interpretation"`
}

type RecommendationsResponse struct {
	Response
	DominantEmotion string           `json:"dominant_emotion"`
	Recommendations []string         `json:"recommendations"`
	GeneralTip      string           `json:"general_tip"`
	MindAgeAnalysis *MindAgeAnalysis `json:"mind_age_analysis,omitempty"`
}

// ErrorResponse is returned by every endpoint on failure.
type ErrorResponse struct {
	Response
}

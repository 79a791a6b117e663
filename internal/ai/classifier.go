// Package ai provides facial emotion classifiers: vision LLM backends, a remote
// MQTT worker and a brightness based mock.
package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/emotion-check/internal/emotion"
)

//go:embed prompts/emotion.txt
var emotionPrompt string

// userInstruction accompanies the image in every vision request.
const userInstruction = "Classify the facial expression in this frame."

// Classifier turns a JPEG frame into an emotion distribution.
type Classifier interface {
	Name() string
	// Real reports whether a real model is behind the classifier.
	Real() bool
	Classify(ctx context.Context, jpeg []byte) (*Classification, error)
}

// Classification is the normalized result for one frame.
type Classification struct {
	Emotions emotion.Distribution
	Dominant emotion.Emotion
}

// ErrNoFace is returned when the model reports that no face is visible.
var ErrNoFace = errors.New("no face detected")

// emotionResponse is the JSON shape requested from vision models.
type emotionResponse struct {
	FaceDetected *bool              `json:"face_detected"`
	Emotions     map[string]float64 `json:"emotions"`
}

func newClassification(raw map[string]float64) *Classification {
	d := emotion.Normalize(raw)
	return &Classification{Emotions: d, Dominant: d.Dominant()}
}

// parseEmotionJSON decodes a model answer. A parse error is returned to the
// retry loop; a valid answer without a face yields ErrNoFace.
func parseEmotionJSON(content string) (*Classification, error) {
	var resp emotionResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &resp); err != nil {
		return nil, err
	}
	if resp.FaceDetected != nil && !*resp.FaceDetected {
		return nil, ErrNoFace
	}
	if len(resp.Emotions) == 0 {
		return nil, errors.New("missing \"emotions\" object")
	}
	for label, v := range resp.Emotions {
		if math.IsNaN(v) || v < 0 {
			return nil, fmt.Errorf("invalid score %v for %q", v, label)
		}
	}
	return newClassification(resp.Emotions), nil
}

// retryFeedback is sent back to a model whose answer could not be parsed.
func retryFeedback(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Output ONLY valid JSON, no other text.", err)
}

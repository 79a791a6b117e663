package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kozaktomas/emotion-check/internal/constants"
)

const geminiModel = "gemini-2.5-flash"

type GeminiClassifier struct {
	client *genai.Client
}

func NewGeminiClassifier(ctx context.Context, apiKey string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClassifier{client: client}, nil
}

func (c *GeminiClassifier) Name() string {
	return geminiModel
}

func (c *GeminiClassifier) Real() bool {
	return true
}

func (c *GeminiClassifier) Classify(ctx context.Context, imageData []byte) (*Classification, error) {
	resizedData, err := ResizeImage(imageData, constants.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: emotionPrompt + "\n\n" + userInstruction},
				{InlineData: &genai.Blob{Data: resizedData, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range constants.MaxClassifierRetries {
		result, err := c.client.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		classification, err := parseEmotionJSON(content)
		if errors.Is(err, ErrNoFace) {
			return nil, err
		}
		if err != nil {
			lastError = err
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: retryFeedback(err)}},
				},
			)
			continue
		}

		return classification, nil
	}

	return nil, fmt.Errorf("failed to parse emotion JSON after %d attempts: %w (last response: %s)", constants.MaxClassifierRetries, lastError, lastResponse)
}

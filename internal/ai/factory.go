package ai

import (
	"context"
	"fmt"

	"github.com/kozaktomas/emotion-check/internal/config"
)

// Backend names accepted by EMOTION_CLASSIFIER.
const (
	BackendMock     = "mock"
	BackendOpenAI   = "openai"
	BackendGemini   = "gemini"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendMQTT     = "mqtt"
)

// NewClassifier builds the configured classifier. Without an explicit backend the
// first configured one wins, in the order openai, gemini, mqtt, ollama, llamacpp,
// falling back to the mock.
func NewClassifier(ctx context.Context, cfg *config.Config) (Classifier, error) {
	backend := cfg.Classifier.Backend
	if backend == "" {
		backend = autoBackend(cfg)
	}

	switch backend {
	case BackendMock:
		return NewMockClassifier(cfg.Classifier.Seed), nil
	case BackendOpenAI:
		if cfg.OpenAI.Token == "" {
			return nil, fmt.Errorf("%s classifier requires OPENAI_TOKEN", backend)
		}
		return NewOpenAIClassifier(cfg.OpenAI.Token), nil
	case BackendGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("%s classifier requires GEMINI_API_KEY", backend)
		}
		return NewGeminiClassifier(ctx, cfg.Gemini.APIKey)
	case BackendOllama:
		return NewOllamaClassifier(cfg.Ollama.URL, cfg.Ollama.Model), nil
	case BackendLlamaCpp:
		return NewLlamaCppClassifier(cfg.LlamaCpp.URL, cfg.LlamaCpp.Model)
	case BackendMQTT:
		return NewMQTTClassifier(cfg.MQTT)
	default:
		return nil, fmt.Errorf("unknown classifier %q", backend)
	}
}

func autoBackend(cfg *config.Config) string {
	switch {
	case cfg.OpenAI.Token != "":
		return BackendOpenAI
	case cfg.Gemini.APIKey != "":
		return BackendGemini
	case cfg.MQTT.Broker != "":
		return BackendMQTT
	case cfg.Ollama.URL != "":
		return BackendOllama
	case cfg.LlamaCpp.URL != "":
		return BackendLlamaCpp
	default:
		return BackendMock
	}
}

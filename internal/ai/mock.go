package ai

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kozaktomas/emotion-check/internal/emotion"
)

// MockClassifier derives plausible scores from image brightness plus Gaussian
// noise. It keeps the demo usable without any model.
type MockClassifier struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockClassifier creates a mock classifier. A zero seed uses the current time.
func NewMockClassifier(seed int64) *MockClassifier {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := uint64(seed) //nolint:gosec // seed only drives demo noise
	return &MockClassifier{rnd: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (m *MockClassifier) Name() string {
	return "mock"
}

func (m *MockClassifier) Real() bool {
	return false
}

func (m *MockClassifier) Classify(ctx context.Context, jpeg []byte) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	brightness, err := Brightness(jpeg)
	if err != nil {
		return nil, fmt.Errorf("mock analysis failed: %w", err)
	}
	return newClassification(m.scores(brightness)), nil
}

// scores returns percentages that add up to 100 before rounding.
func (m *MockClassifier) scores(brightness float64) map[string]float64 {
	m.mu.Lock()
	noise := func(sigma float64) float64 { return m.rnd.NormFloat64() * sigma }
	raw := map[emotion.Emotion]float64{
		emotion.Happy:    brightness/2.55 + noise(10),
		emotion.Neutral:  50 + noise(15),
		emotion.Sad:      (255-brightness)/3 + noise(8),
		emotion.Angry:    15 + noise(12),
		emotion.Surprise: 20 + noise(10),
		emotion.Fear:     10 + noise(8),
		emotion.Disgust:  8 + noise(6),
	}
	m.mu.Unlock()

	var total float64
	for _, e := range emotion.Vocabulary {
		raw[e] = min(max(raw[e], 0), 100)
		total += raw[e]
	}

	out := make(map[string]float64, len(raw))
	for _, e := range emotion.Vocabulary {
		if total > 0 {
			out[string(e)] = raw[e] / total * 100
		} else {
			out[string(e)] = 100 / float64(len(raw))
		}
	}
	return out
}

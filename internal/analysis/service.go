// Package analysis runs the session workflow behind the HTTP API: creating
// sessions, storing uploaded frames, classifying them and building
// recommendations from the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/emotion-check/internal/ai"
	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/emotion"
	"github.com/kozaktomas/emotion-check/internal/metrics"
	"github.com/kozaktomas/emotion-check/internal/recommend"
	"github.com/kozaktomas/emotion-check/internal/session"
	"github.com/rs/zerolog/log"
)

// RequestError is a client error. Message is returned to the caller as is.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

var (
	ErrMissingUploadFields = &RequestError{Message: "Missing session_id or frames"}
	ErrMissingSessionID    = &RequestError{Message: "Missing session_id"}
	ErrNoFrames            = &RequestError{Message: "No frames found"}
)

type Service struct {
	store      session.Store
	classifier ai.Classifier
	metrics    *metrics.Metrics
	config     *config.Config
}

// NewService wires the workflow. A nil metrics disables instrumentation.
func NewService(store session.Store, classifier ai.Classifier, m *metrics.Metrics, cfg *config.Config) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		metrics:    m,
		config:     cfg,
	}
}

// Classifier returns the classifier used for analysis.
func (s *Service) Classifier() ai.Classifier {
	return s.classifier
}

func (s *Service) CreateSession(ctx context.Context) (*session.Session, error) {
	sess, err := s.store.Create(ctx, s.classifier.Real())
	if err != nil {
		return nil, fmt.Errorf("could not create session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SessionCreated()
	}
	log.Info().Str("session", sess.ID).Msg("created session")
	return sess, nil
}

// UploadFrames decodes and stores the frames of a session, replacing earlier
// uploads. Frames that cannot be decoded are skipped. A frame is numbered by its
// position in the request, starting at 1.
func (s *Service) UploadFrames(ctx context.Context, sessionID string, frames []api.Frame) (int, error) {
	if sessionID == "" || len(frames) == 0 {
		return 0, ErrMissingUploadFields
	}
	if !session.ValidID(sessionID) {
		return 0, session.ErrNotFound
	}
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return 0, err
	}

	data := make([]session.FrameData, 0, len(frames))
	for i, f := range frames {
		frameID := i + 1
		raw, err := ai.DecodeDataURL(f.ImageData)
		if err == nil {
			raw, err = ai.NormalizeJPEG(raw)
		}
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Int("frame", frameID).Msg("skipping frame")
			continue
		}
		data = append(data, session.FrameData{
			FrameID:   frameID,
			Timestamp: f.Timestamp,
			JPEG:      raw,
		})
	}

	infos, err := s.store.SaveFrames(ctx, sessionID, data)
	if err != nil {
		return 0, fmt.Errorf("could not save frames: %w", err)
	}
	if s.metrics != nil {
		s.metrics.FramesUploaded(len(infos), len(frames)-len(infos))
	}
	log.Info().Str("session", sessionID).Int("saved", len(infos)).Int("received", len(frames)).Msg("saved frames")
	return len(infos), nil
}

// Analyze classifies every stored frame of a session in order. A frame that
// fails is reported in its result and left out of the average.
func (s *Service) Analyze(ctx context.Context, sessionID string) (*session.Analysis, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if !session.ValidID(sessionID) {
		return nil, session.ErrNotFound
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Frames) == 0 {
		return nil, ErrNoFrames
	}

	log.Info().Str("session", sessionID).Int("frames", len(sess.Frames)).Str("classifier", s.classifier.Name()).
		Msg("starting emotion analysis")

	results := make([]api.FrameResult, 0, len(sess.Frames))
	successful := make([]emotion.Distribution, 0, len(sess.Frames))
	for _, info := range sess.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, dist := s.analyzeFrame(ctx, sessionID, info)
		results = append(results, result)
		if dist != nil {
			successful = append(successful, dist)
		}
	}

	avg := emotion.Average(successful)
	dominant := emotion.Neutral
	if len(successful) > 0 {
		dominant = avg.Dominant()
	}

	analysis := &session.Analysis{
		Results:            results,
		AverageEmotions:    avg.ToMap(),
		DominantEmotion:    string(dominant),
		TotalFrames:        len(sess.Frames),
		SuccessfulAnalyses: len(successful),
		ClassifierUsed:     s.classifier.Real(),
		Classifier:         s.classifier.Name(),
	}
	if err := s.store.SaveAnalysis(ctx, sessionID, analysis); err != nil {
		return nil, fmt.Errorf("could not save analysis: %w", err)
	}

	log.Info().Str("session", sessionID).Int("successful", len(successful)).Str("dominant", string(dominant)).
		Msg("emotion analysis finished")
	return analysis, nil
}

func (s *Service) analyzeFrame(ctx context.Context, sessionID string, info session.FrameInfo) (api.FrameResult, emotion.Distribution) {
	result := api.FrameResult{
		Frame:     info.FrameID,
		Timestamp: info.Timestamp,
		Filename:  info.Filename,
	}

	start := time.Now()
	c, err := s.classifyFrame(ctx, sessionID, info.FrameID)
	if s.metrics != nil {
		s.metrics.AnalysisDuration(s.classifier.Name(), time.Since(start))
	}
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Int("frame", info.FrameID).Msg("error analyzing frame")
		result.Emotions = emotion.Zero().ToMap()
		result.DominantEmotion = string(emotion.Neutral)
		result.Error = err.Error()
		s.frameAnalyzed(metrics.OutcomeError)
		return result, nil
	}

	result.Emotions = c.Emotions.ToMap()
	result.DominantEmotion = string(c.Dominant)
	result.Success = true
	s.frameAnalyzed(metrics.OutcomeSuccess)
	log.Debug().Str("session", sessionID).Int("frame", info.FrameID).Str("dominant", string(c.Dominant)).
		Msg("analyzed frame")
	return result, c.Emotions
}

func (s *Service) classifyFrame(ctx context.Context, sessionID string, frameID int) (*ai.Classification, error) {
	jpeg, err := s.store.LoadFrame(ctx, sessionID, frameID)
	if err != nil {
		if errors.Is(err, session.ErrFrameNotFound) {
			return nil, errors.New("could not load image")
		}
		return nil, err
	}
	return s.classifier.Classify(ctx, jpeg)
}

func (s *Service) frameAnalyzed(outcome string) {
	if s.metrics != nil {
		s.metrics.FrameAnalyzed(s.classifier.Name(), outcome)
	}
}

// Recommend builds the recommendations for a dominant emotion. An empty emotion
// is treated as neutral and emotions may be nil.
func (s *Service) Recommend(dominant string, emotions map[string]float64) *api.RecommendationsResponse {
	return recommend.Build(s.config, dominant, emotions)
}

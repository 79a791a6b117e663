// Package orchestrator runs the four backend calls that turn captured frames
// into an analysis with recommendations.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/rs/zerolog/log"
)

// Backend is the part of the REST API the orchestrator needs. *client.Client
// satisfies it.
type Backend interface {
	CreateSession(ctx context.Context) (*api.CreateSessionResponse, error)
	UploadFrames(ctx context.Context, sessionID string, frames []api.Frame) (*api.UploadFramesResponse, error)
	AnalyzeEmotions(ctx context.Context, sessionID string) (*api.AnalyzeResponse, error)
	GetRecommendations(ctx context.Context, dominant string, emotions map[string]float64) (*api.RecommendationsResponse, error)
}

// Step names a call in the chain.
type Step string

const (
	StepCreateSession      Step = "create session"
	StepUploadFrames       Step = "upload frames"
	StepAnalyzeEmotions    Step = "analyze emotions"
	StepGetRecommendations Step = "get recommendations"
)

// StepError reports the step that stopped the chain. Err is nil when the backend
// answered with success false.
type StepError struct {
	Step    Step
	Message string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Result struct {
	SessionID       string
	Analysis        *api.AnalyzeResponse
	Recommendations *api.RecommendationsResponse
}

// reply is implemented by every response payload through api.Response.
type reply interface {
	Failed() bool
	ErrorMessage() string
}

// check turns a call outcome into a StepError. A nil response without an error
// is a failure too.
func check[R any, P interface {
	*R
	reply
}](step Step, resp P, err error) error {
	if err != nil {
		return &StepError{Step: step, Message: err.Error(), Err: err}
	}
	if resp == nil {
		return &StepError{Step: step, Message: "empty response"}
	}
	if resp.Failed() {
		msg := resp.ErrorMessage()
		if msg == "" {
			msg = "unknown error"
		}
		return &StepError{Step: step, Message: msg}
	}
	return nil
}

// Run creates a session, uploads the frames, analyzes them and fetches the
// recommendations. It stops at the first failing step.
func Run(ctx context.Context, b Backend, frames []api.Frame) (*Result, error) {
	created, err := b.CreateSession(ctx)
	if err := check(StepCreateSession, created, err); err != nil {
		return nil, err
	}
	log.Debug().Str("session", created.SessionID).Msg("session created")

	uploaded, err := b.UploadFrames(ctx, created.SessionID, frames)
	if err := check(StepUploadFrames, uploaded, err); err != nil {
		return nil, err
	}
	log.Debug().Str("session", created.SessionID).Int("frames", uploaded.FramesSaved).Msg("frames uploaded")

	analysis, err := b.AnalyzeEmotions(ctx, created.SessionID)
	if err := check(StepAnalyzeEmotions, analysis, err); err != nil {
		return nil, err
	}
	log.Debug().Str("session", created.SessionID).Str("dominant", analysis.DominantEmotion).Msg("frames analyzed")

	recs, err := b.GetRecommendations(ctx, analysis.DominantEmotion, analysis.AverageEmotions)
	if err := check(StepGetRecommendations, recs, err); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:       created.SessionID,
		Analysis:        analysis,
		Recommendations: recs,
	}, nil
}

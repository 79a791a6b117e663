package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/emotion-check/internal/api"
)

type fakeBackend struct {
	calls []Step

	createErr  error
	uploadFail string
	analyzeErr error
	analyzeNil bool
	recsFail   bool
}

var ok = api.Response{Success: true}

func (f *fakeBackend) CreateSession(context.Context) (*api.CreateSessionResponse, error) {
	f.calls = append(f.calls, StepCreateSession)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.CreateSessionResponse{Response: ok, SessionID: "srv-1"}, nil
}

func (f *fakeBackend) UploadFrames(_ context.Context, id string, frames []api.Frame) (*api.UploadFramesResponse, error) {
	f.calls = append(f.calls, StepUploadFrames)
	if f.uploadFail != "" {
		return &api.UploadFramesResponse{Response: api.Response{Error: f.uploadFail}}, nil
	}
	return &api.UploadFramesResponse{Response: ok, FramesSaved: len(frames)}, nil
}

func (f *fakeBackend) AnalyzeEmotions(_ context.Context, id string) (*api.AnalyzeResponse, error) {
	f.calls = append(f.calls, StepAnalyzeEmotions)
	if f.analyzeErr != nil || f.analyzeNil {
		return nil, f.analyzeErr
	}
	return &api.AnalyzeResponse{
		Response:        ok,
		SessionID:       id,
		DominantEmotion: "happy",
		AverageEmotions: map[string]float64{"happy": 80, "neutral": 20},
	}, nil
}

func (f *fakeBackend) GetRecommendations(_ context.Context, dominant string, _ map[string]float64) (*api.RecommendationsResponse, error) {
	f.calls = append(f.calls, StepGetRecommendations)
	if f.recsFail {
		return &api.RecommendationsResponse{}, nil
	}
	return &api.RecommendationsResponse{Response: ok, DominantEmotion: dominant, Recommendations: []string{"smile"}}, nil
}

func TestRun_Success(t *testing.T) {
	b := &fakeBackend{}

	result, err := Run(context.Background(), b, make([]api.Frame, 10))
	require.NoError(t, err)

	assert.Equal(t, "srv-1", result.SessionID)
	assert.Equal(t, "happy", result.Analysis.DominantEmotion)
	assert.Equal(t, "happy", result.Recommendations.DominantEmotion)
	assert.Equal(t, []Step{StepCreateSession, StepUploadFrames, StepAnalyzeEmotions, StepGetRecommendations}, b.calls)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	networkErr := errors.New("connection refused")

	tests := []struct {
		name    string
		backend *fakeBackend
		step    Step
		message string
		wrapped error
	}{
		{"CreateError", &fakeBackend{createErr: networkErr}, StepCreateSession, "connection refused", networkErr},
		{"UploadFlag", &fakeBackend{uploadFail: "Missing session_id or frames"}, StepUploadFrames, "Missing session_id or frames", nil},
		{"AnalyzeError", &fakeBackend{analyzeErr: networkErr}, StepAnalyzeEmotions, "connection refused", networkErr},
		{"RecommendationsFlagWithoutMessage", &fakeBackend{recsFail: true}, StepGetRecommendations, "unknown error", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Run(context.Background(), tc.backend, nil)
			assert.Nil(t, result)

			var stepErr *StepError
			require.True(t, errors.As(err, &stepErr))
			assert.Equal(t, tc.step, stepErr.Step)
			assert.Equal(t, tc.message, stepErr.Message)
			if tc.wrapped != nil {
				assert.ErrorIs(t, err, tc.wrapped)
			}
			assert.Equal(t, tc.step, tc.backend.calls[len(tc.backend.calls)-1], "no step may run after the failing one")
		})
	}
}

func TestStepError_Message(t *testing.T) {
	err := &StepError{Step: StepAnalyzeEmotions, Message: "Session not found"}
	assert.Equal(t, "analyze emotions failed: Session not found", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestRun_EmptyResponseStopsChain(t *testing.T) {
	b := &fakeBackend{analyzeNil: true}

	result, err := Run(context.Background(), b, make([]api.Frame, 10))

	assert.Nil(t, result)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepAnalyzeEmotions, stepErr.Step)
	assert.Equal(t, "empty response", stepErr.Message)
	assert.Equal(t, []Step{StepCreateSession, StepUploadFrames, StepAnalyzeEmotions}, b.calls)
}

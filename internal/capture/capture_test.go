package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/emotion-check/internal/ai"
	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/kozaktomas/emotion-check/internal/orchestrator"
)

type fakeBackend struct {
	healthErr  error
	health     *api.HealthResponse
	analyzeErr error
	// block, when set, holds AnalyzeEmotions until it is closed
	block   chan struct{}
	entered chan struct{}

	mu       sync.Mutex
	uploaded []api.Frame
}

var success = api.Response{Success: true}

func (b *fakeBackend) Health(context.Context) (*api.HealthResponse, error) {
	if b.healthErr != nil {
		return nil, b.healthErr
	}
	if b.health != nil {
		return b.health, nil
	}
	return &api.HealthResponse{Response: success, Status: api.StatusHealthy, Classifier: "mock"}, nil
}

func (b *fakeBackend) CreateSession(context.Context) (*api.CreateSessionResponse, error) {
	return &api.CreateSessionResponse{Response: success, SessionID: "server-session"}, nil
}

func (b *fakeBackend) UploadFrames(_ context.Context, _ string, frames []api.Frame) (*api.UploadFramesResponse, error) {
	b.mu.Lock()
	b.uploaded = frames
	b.mu.Unlock()
	return &api.UploadFramesResponse{Response: success, FramesSaved: len(frames)}, nil
}

func (b *fakeBackend) AnalyzeEmotions(_ context.Context, id string) (*api.AnalyzeResponse, error) {
	if b.entered != nil {
		close(b.entered)
	}
	if b.block != nil {
		<-b.block
	}
	if b.analyzeErr != nil {
		return nil, b.analyzeErr
	}
	return &api.AnalyzeResponse{
		Response:        success,
		SessionID:       id,
		DominantEmotion: "happy",
		AverageEmotions: map[string]float64{"happy": 100},
	}, nil
}

func (b *fakeBackend) GetRecommendations(_ context.Context, dominant string, _ map[string]float64) (*api.RecommendationsResponse, error) {
	return &api.RecommendationsResponse{Response: success, DominantEmotion: dominant}, nil
}

// flakyCamera fails every frame for which fail returns true.
type flakyCamera struct {
	fail func(n int) bool
}

func (c *flakyCamera) Name() string { return "flaky" }

func (c *flakyCamera) Open(ctx context.Context) (Stream, error) {
	inner, _ := (&SyntheticCamera{Width: 32, Height: 24}).Open(ctx)
	return &flakyStream{inner: inner, fail: c.fail}, nil
}

type flakyStream struct {
	inner Stream
	fail  func(n int) bool
	n     atomic.Int32
}

func (s *flakyStream) Frame(ctx context.Context) (image.Image, error) {
	n := int(s.n.Add(1))
	if s.fail(n) {
		return nil, fmt.Errorf("frame %d dropped", n)
	}
	return s.inner.Frame(ctx)
}

func (s *flakyStream) Close() error { return nil }

type failingCamera struct {
	err error
}

func (c *failingCamera) Name() string                         { return "failing" }
func (c *failingCamera) Open(context.Context) (Stream, error) { return nil, c.err }

func testOptions() Options {
	return Options{Interval: 2 * time.Millisecond, Width: 64, Height: 48}
}

func readyController(t *testing.T, backend Backend, camera Camera, opts Options) *Controller {
	t.Helper()
	c := NewController(backend, camera, opts)
	require.NoError(t, c.CheckBackend(context.Background()))
	require.NoError(t, c.StartCamera(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func capturedController(t *testing.T, backend Backend) *Controller {
	t.Helper()
	c := readyController(t, backend, &SyntheticCamera{}, testOptions())
	require.NoError(t, c.StartCapture(context.Background()))
	require.NoError(t, c.Wait(context.Background()))
	require.True(t, c.CanAnalyze())
	return c
}

func TestController_CaptureGuards(t *testing.T) {
	ctx := context.Background()

	c := NewController(&fakeBackend{healthErr: errors.New("connection refused")}, &SyntheticCamera{}, testOptions())
	assert.ErrorIs(t, c.CheckBackend(ctx), ErrBackendUnavailable)
	assert.Contains(t, c.Status(), "Backend unavailable")
	require.NoError(t, c.StartCamera(ctx))
	assert.False(t, c.CanCapture())
	assert.ErrorIs(t, c.StartCapture(ctx), ErrBackendUnavailable)

	c = NewController(&fakeBackend{}, &SyntheticCamera{}, testOptions())
	require.NoError(t, c.CheckBackend(ctx))
	assert.ErrorIs(t, c.StartCapture(ctx), ErrNoStream)

	require.NoError(t, c.StartCamera(ctx))
	assert.True(t, c.CanCapture())
	require.NoError(t, c.StartCapture(ctx))
	assert.ErrorIs(t, c.StartCapture(ctx), ErrNotReady)
	require.NoError(t, c.Wait(ctx))
	assert.ErrorIs(t, c.StartCapture(ctx), ErrNotReady, "a finished capture must be retaken first")
}

func TestController_UnhealthyBackendBlocksCapture(t *testing.T) {
	tests := []struct {
		name   string
		health *api.HealthResponse
		status string
	}{
		{
			name:   "failed envelope",
			health: &api.HealthResponse{Response: api.Response{Error: "model offline"}, Status: "unhealthy"},
			status: "model offline",
		},
		{
			name:   "failed envelope without message",
			health: &api.HealthResponse{Status: "unhealthy"},
			status: "health check failed",
		},
		{
			name:   "success with degraded status",
			health: &api.HealthResponse{Response: success, Status: "degraded", Classifier: "mock"},
			status: `backend status is "degraded"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := NewController(&fakeBackend{health: tt.health}, &SyntheticCamera{}, testOptions())
			t.Cleanup(func() { c.Close() })

			assert.ErrorIs(t, c.CheckBackend(ctx), ErrBackendUnavailable)
			assert.Contains(t, c.Status(), "Backend unavailable")
			assert.Contains(t, c.Status(), tt.status)
			require.NoError(t, c.StartCamera(ctx))
			assert.False(t, c.CanCapture())
			assert.ErrorIs(t, c.StartCapture(ctx), ErrBackendUnavailable)
		})
	}
}

func TestController_CheckBackendRecovers(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{health: &api.HealthResponse{Status: "unhealthy"}}
	c := NewController(backend, &SyntheticCamera{}, testOptions())
	t.Cleanup(func() { c.Close() })

	assert.ErrorIs(t, c.CheckBackend(ctx), ErrBackendUnavailable)
	backend.health = nil
	require.NoError(t, c.CheckBackend(ctx))
	require.NoError(t, c.StartCamera(ctx))
	assert.True(t, c.CanCapture())
}

func TestController_CapturesTenFrames(t *testing.T) {
	var progress []int
	var mu sync.Mutex
	opts := testOptions()
	opts.OnFrame = func(captured, total int) {
		mu.Lock()
		progress = append(progress, captured)
		mu.Unlock()
		assert.Equal(t, 10, total)
	}
	c := readyController(t, &fakeBackend{}, &SyntheticCamera{}, opts)

	require.NoError(t, c.StartCapture(context.Background()))
	require.NoError(t, c.Wait(context.Background()))

	assert.Equal(t, StateReady, c.State())
	frames := c.Frames()
	require.Len(t, frames, 10)
	for i, f := range frames {
		assert.Equal(t, i+1, f.FrameNumber)
		assert.Equal(t, c.SessionID(), f.SessionID)
		assert.True(t, strings.HasPrefix(f.ImageData, "data:image/jpeg;base64,"))
		assert.True(t, strings.HasSuffix(f.Timestamp, "Z"))
	}

	jpegData, err := ai.DecodeDataURL(frames[0].ImageData)
	require.NoError(t, err)
	resized, err := ai.ResizeImage(jpegData, 1000)
	require.NoError(t, err)
	assert.NotEmpty(t, resized)

	captured, total := c.Progress()
	assert.Equal(t, 10, captured)
	assert.Equal(t, 10, total)
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, progress)
	mu.Unlock()
}

func TestController_FirstFrameIsImmediate(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Hour
	opts.Frames = 1
	c := readyController(t, &fakeBackend{}, &SyntheticCamera{}, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.StartCapture(ctx))
	require.NoError(t, c.Wait(ctx))
	assert.Len(t, c.Frames(), 1)
}

func TestController_FrameErrorsDoNotStopSchedule(t *testing.T) {
	var errorsSeen atomic.Int32
	opts := testOptions()
	opts.OnFrameError = func(int, error) { errorsSeen.Add(1) }
	camera := &flakyCamera{fail: func(n int) bool { return n%2 == 0 }}
	c := readyController(t, &fakeBackend{}, camera, opts)

	require.NoError(t, c.StartCapture(context.Background()))
	require.NoError(t, c.Wait(context.Background()))

	assert.Len(t, c.Frames(), 10)
	assert.Equal(t, int32(9), errorsSeen.Load())
	assert.True(t, c.CanAnalyze())
}

func TestController_GivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	opts := testOptions()
	opts.MaxAttempts = 5
	opts.OnFrameError = func(int, error) { attempts.Add(1) }
	camera := &flakyCamera{fail: func(n int) bool { return n > 2 }}
	c := readyController(t, &fakeBackend{}, camera, opts)

	require.NoError(t, c.StartCapture(context.Background()))
	err := c.Wait(context.Background())

	assert.ErrorIs(t, err, ErrCaptureIncomplete)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, c.Frames(), 2)
	assert.False(t, c.CanAnalyze())
	assert.Contains(t, c.Status(), "Captured 2 of 10")
}

func TestController_CancelStopsCapture(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Hour
	c := readyController(t, &fakeBackend{}, &SyntheticCamera{}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.StartCapture(ctx))
	cancel()

	assert.ErrorIs(t, c.Wait(context.Background()), context.Canceled)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_Analyze(t *testing.T) {
	backend := &fakeBackend{}
	c := capturedController(t, backend)

	result, err := c.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "server-session", result.SessionID)
	assert.Equal(t, "server-session", c.SessionID())
	assert.Equal(t, "happy", result.Recommendations.DominantEmotion)
	assert.Equal(t, StateResults, c.State())
	assert.Same(t, result, c.Result())
	backend.mu.Lock()
	assert.Len(t, backend.uploaded, 10)
	backend.mu.Unlock()

	_, err = c.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestController_RetakeAfterAnalysisIssuesNewID(t *testing.T) {
	c := capturedController(t, &fakeBackend{})
	localID := c.SessionID()
	assert.NotEqual(t, "server-session", localID)

	_, err := c.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "server-session", c.SessionID())

	c.Retake()
	assert.NotEqual(t, "server-session", c.SessionID())
	assert.NotEqual(t, localID, c.SessionID())
	assert.True(t, strings.HasPrefix(c.SessionID(), "session_"))
}

func TestController_AnalyzeFailureAllowsRetry(t *testing.T) {
	backend := &fakeBackend{analyzeErr: errors.New("request failed with status 500: boom")}
	c := capturedController(t, backend)

	_, err := c.Analyze(context.Background())

	var stepErr *orchestrator.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, orchestrator.StepAnalyzeEmotions, stepErr.Step)
	assert.Equal(t, StateReady, c.State())
	assert.True(t, c.CanAnalyze())
	assert.Contains(t, c.Status(), "Analysis failed")

	backend.analyzeErr = nil
	_, err = c.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateResults, c.State())
}

func TestController_RetakeDiscardsInFlightAnalysis(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{}), entered: make(chan struct{})}
	c := capturedController(t, backend)
	oldID := c.SessionID()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		errCh <- err
	}()

	<-backend.entered
	assert.Equal(t, StateAnalyzing, c.State())
	c.Retake()
	close(backend.block)

	assert.ErrorIs(t, <-errCh, ErrStale)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Frames())
	assert.Nil(t, c.Result())
	assert.NotEqual(t, oldID, c.SessionID())
}

func TestController_RetakeDuringCapture(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Hour
	c := readyController(t, &fakeBackend{}, &SyntheticCamera{}, opts)

	require.NoError(t, c.StartCapture(context.Background()))
	c.Retake()
	require.NoError(t, c.Wait(context.Background()))

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Frames())
	assert.True(t, c.CanCapture())
}

func TestNewLocalID(t *testing.T) {
	id := newLocalID()
	parts := strings.Split(id, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "session", parts[0])
	assert.NotEmpty(t, parts[2])
	assert.LessOrEqual(t, len(parts[2]), 9)
	assert.NotEqual(t, id, newLocalID())
}

func TestStartCamera_ClassifiesFailure(t *testing.T) {
	c := NewController(&fakeBackend{}, &failingCamera{err: fs.ErrPermission}, testOptions())

	err := c.StartCamera(context.Background())

	var failure *CameraFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, FailurePermission, failure.Kind)
	assert.Equal(t, failure.Message, c.Status())
}

func TestClassifyCameraError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"Permission", fmt.Errorf("open /dev/video0: %w", fs.ErrPermission), FailurePermission},
		{"NoDevice", ErrNoDevice, FailureNoDevice},
		{"NotExist", &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrNotExist}, FailureNoDevice},
		{"Other", errors.New("device busy"), FailureOther},
		{"PermissionWinsInJoin", errors.Join(ErrNoDevice, fs.ErrPermission), FailurePermission},
	}

	messages := map[FailureKind]string{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := ClassifyCameraError(tc.err)
			require.NotNil(t, f)
			assert.Equal(t, tc.kind, f.Kind)
			assert.ErrorIs(t, f, tc.err)
			messages[f.Kind] = f.Message
		})
	}
	assert.Len(t, messages, 3)
	assert.NotEqual(t, messages[FailurePermission], messages[FailureNoDevice])
	assert.Nil(t, ClassifyCameraError(nil))
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDirectoryCamera(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), color.White)
	writePNG(t, filepath.Join(dir, "b.png"), color.Black)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	stream, err := (&DirectoryCamera{Dir: dir}).Open(context.Background())
	require.NoError(t, err)

	var shades []uint32
	for range 3 {
		img, err := stream.Frame(context.Background())
		require.NoError(t, err)
		r, _, _, _ := img.At(0, 0).RGBA()
		shades = append(shades, r)
	}
	assert.Equal(t, []uint32{0xffff, 0, 0xffff}, shades, "frames cycle in name order")
}

func TestDirectoryCamera_NoDevice(t *testing.T) {
	_, err := (&DirectoryCamera{Dir: filepath.Join(t.TempDir(), "missing")}).Open(context.Background())
	assert.Equal(t, FailureNoDevice, ClassifyCameraError(err).Kind)

	_, err = (&DirectoryCamera{Dir: t.TempDir()}).Open(context.Background())
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestFallbackCamera(t *testing.T) {
	cam := &FallbackCamera{Cameras: []Camera{
		&DirectoryCamera{Dir: filepath.Join(t.TempDir(), "missing")},
		&SyntheticCamera{Width: 10, Height: 10},
	}}

	stream, err := cam.Open(context.Background())
	require.NoError(t, err)
	img, err := stream.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Contains(t, cam.Name(), "synthetic")
}

func TestFallbackCamera_AllFail(t *testing.T) {
	cam := &FallbackCamera{Cameras: []Camera{
		&failingCamera{err: ErrNoDevice},
		&failingCamera{err: fs.ErrPermission},
	}}

	_, err := cam.Open(context.Background())

	assert.Equal(t, FailurePermission, ClassifyCameraError(err).Kind)
	_, err = (&FallbackCamera{}).Open(context.Background())
	assert.ErrorIs(t, err, ErrNoDevice)
}

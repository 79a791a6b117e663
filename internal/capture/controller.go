package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/emotion-check/internal/ai"
	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/kozaktomas/emotion-check/internal/constants"
	"github.com/kozaktomas/emotion-check/internal/orchestrator"
)

var (
	ErrNotReady           = errors.New("action not allowed in the current state")
	ErrBackendUnavailable = errors.New("backend is not connected")
	ErrNoStream           = errors.New("camera is not started")
	ErrCaptureIncomplete  = errors.New("capture did not complete, please retake")
	// ErrStale is returned by Analyze when Retake ran while the analysis was in flight.
	ErrStale = errors.New("analysis result discarded after retake")
)

// State is a phase of the capture workflow.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateReady
	StateAnalyzing
	StateResults
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateReady:
		return "ready"
	case StateAnalyzing:
		return "analyzing"
	case StateResults:
		return "results"
	default:
		return "unknown"
	}
}

// Backend is the REST API as seen by the controller.
type Backend interface {
	orchestrator.Backend
	Health(ctx context.Context) (*api.HealthResponse, error)
}

type Options struct {
	Frames      int           // frames per session, defaults to 10
	Interval    time.Duration // delay between ticks, defaults to 1s
	MaxAttempts int           // ticks before an incomplete capture gives up, defaults to 30
	Width       int           // offscreen bitmap size, defaults to 640x480
	Height      int
	Quality     int // JPEG quality, defaults to 80

	// OnFrame is called after every stored frame.
	OnFrame func(captured, total int)
	// OnFrameError is called when a tick fails. The schedule continues.
	OnFrameError func(attempt int, err error)
}

func (o *Options) withDefaults() {
	if o.Frames <= 0 {
		o.Frames = constants.FramesPerSession
	}
	if o.Interval <= 0 {
		o.Interval = constants.CaptureInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = constants.MaxCaptureAttempts
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = 640, 480
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = constants.FrameJPEGQuality
	}
}

// Controller owns the capture state machine. All methods are safe for concurrent use.
type Controller struct {
	backend Backend
	camera  Camera
	opts    Options

	mu         sync.Mutex
	state      State
	connected  bool
	stream     Stream
	frames     []api.Frame
	attempts   int
	generation uint64
	localID    string
	status     string
	result     *orchestrator.Result
	captureErr error
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewController(backend Backend, camera Camera, opts Options) *Controller {
	opts.withDefaults()
	return &Controller{
		backend: backend,
		camera:  camera,
		opts:    opts,
		localID: newLocalID(),
		status:  "Connecting to backend...",
	}
}

// newLocalID returns a client side id such as session_1714564800000_k3j9x0a2b.
func newLocalID() string {
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

// CheckBackend probes the health endpoint and records whether the backend is
// reachable. A reply with success false or a status other than healthy counts
// as unavailable.
func (c *Controller) CheckBackend(ctx context.Context) error {
	health, err := c.backend.Health(ctx)
	if err == nil {
		err = unhealthy(health)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.connected = false
		c.status = "Backend unavailable: " + err.Error()
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	c.connected = true
	c.status = fmt.Sprintf("Backend connected (%s classifier)", health.Classifier)
	return nil
}

func unhealthy(health *api.HealthResponse) error {
	switch {
	case health == nil:
		return errors.New("empty health response")
	case health.Failed():
		msg := health.ErrorMessage()
		if msg == "" {
			msg = "health check failed"
		}
		return errors.New(msg)
	case health.Status != api.StatusHealthy:
		return fmt.Errorf("backend status is %q", health.Status)
	}
	return nil
}

// StartCamera opens the camera. Failures are returned as *CameraFailure.
func (c *Controller) StartCamera(ctx context.Context) error {
	stream, err := c.camera.Open(ctx)
	if err != nil {
		failure := ClassifyCameraError(err)
		c.mu.Lock()
		c.status = failure.Message
		c.mu.Unlock()
		log.Warn().Err(err).Str("kind", string(failure.Kind)).Msg("camera failed to start")
		return failure
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.Close()
	}
	c.stream = stream
	c.status = "Camera ready"
	return nil
}

// CanCapture reports whether StartCapture would be accepted.
func (c *Controller) CanCapture() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureGuard() == nil
}

func (c *Controller) captureGuard() error {
	switch {
	case !c.connected:
		return ErrBackendUnavailable
	case c.stream == nil:
		return ErrNoStream
	case c.state != StateIdle:
		return ErrNotReady
	}
	return nil
}

// CanAnalyze reports whether a full set of frames is waiting for analysis.
func (c *Controller) CanAnalyze() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady && len(c.frames) == c.opts.Frames
}

// StartCapture takes the first frame immediately and one per interval after
// that until the session is complete. It returns once the schedule is running;
// use Wait to block until it ends.
func (c *Controller) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.captureGuard(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.state = StateCapturing
	c.frames = nil
	c.attempts = 0
	c.captureErr = nil
	c.result = nil
	c.cancel = cancel
	c.done = make(chan struct{})
	c.status = "Capturing..."

	go c.run(runCtx, c.generation, c.done)
	return nil
}

func (c *Controller) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	canvas := image.NewRGBA(image.Rect(0, 0, c.opts.Width, c.opts.Height))

	for {
		if finished := c.tick(ctx, gen, canvas); finished {
			return
		}
		select {
		case <-ctx.Done():
			c.abandon(gen, ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// tick captures one frame and reports whether the schedule is over.
func (c *Controller) tick(ctx context.Context, gen uint64, canvas *image.RGBA) bool {
	c.mu.Lock()
	if gen != c.generation || c.state != StateCapturing {
		c.mu.Unlock()
		return true
	}
	c.attempts++
	attempt := c.attempts
	stream := c.stream
	c.mu.Unlock()

	frame, err := c.grab(ctx, stream, canvas)

	c.mu.Lock()
	if gen != c.generation || c.state != StateCapturing {
		c.mu.Unlock()
		return true
	}
	if err == nil {
		frame.FrameNumber = len(c.frames) + 1
		frame.SessionID = c.localID
		c.frames = append(c.frames, frame)
	}
	captured := len(c.frames)

	finished := true
	switch {
	case captured >= c.opts.Frames:
		c.state = StateReady
		c.status = "Capture complete. Ready to analyze."
	case attempt >= c.opts.MaxAttempts:
		c.state = StateIdle
		c.captureErr = ErrCaptureIncomplete
		c.status = fmt.Sprintf("Captured %d of %d frames. Please retake.", captured, c.opts.Frames)
	default:
		finished = false
	}
	c.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Int("attempt", attempt).Msg("frame capture failed")
		if c.opts.OnFrameError != nil {
			c.opts.OnFrameError(attempt, err)
		}
	} else if c.opts.OnFrame != nil {
		c.opts.OnFrame(captured, c.opts.Frames)
	}
	return finished
}

// abandon ends a capture whose context was canceled by the caller.
func (c *Controller) abandon(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != StateCapturing {
		return
	}
	c.state = StateIdle
	c.captureErr = err
	c.status = "Capture canceled"
}

// grab draws the next camera frame onto the offscreen bitmap and encodes it.
func (c *Controller) grab(ctx context.Context, stream Stream, canvas *image.RGBA) (api.Frame, error) {
	img, err := stream.Frame(ctx)
	if err != nil {
		return api.Frame{}, err
	}

	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		return api.Frame{}, fmt.Errorf("could not encode frame: %w", err)
	}
	return api.Frame{
		ImageData: ai.EncodeDataURL(buf.Bytes()),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}, nil
}

// Wait blocks until the running capture ends and returns its error, if any.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureErr
}

// Frames returns a copy of the captured frames.
func (c *Controller) Frames() []api.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Progress returns the captured and the required number of frames.
func (c *Controller) Progress() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames), c.opts.Frames
}

// Analyze runs the orchestrator over the captured frames. On failure the
// controller returns to Ready so the analysis can be retried.
func (c *Controller) Analyze(ctx context.Context) (*orchestrator.Result, error) {
	c.mu.Lock()
	if c.state != StateReady || len(c.frames) != c.opts.Frames {
		c.mu.Unlock()
		return nil, ErrNotReady
	}
	c.state = StateAnalyzing
	c.status = "Analyzing..."
	gen := c.generation
	frames := make([]api.Frame, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	result, err := orchestrator.Run(ctx, c.backend, frames)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		log.Debug().Msg("discarding analysis result after retake")
		return nil, ErrStale
	}
	if err != nil {
		c.state = StateReady
		c.status = "Analysis failed: " + err.Error()
		return nil, err
	}
	c.state = StateResults
	c.result = result
	c.localID = result.SessionID
	c.status = "Analysis complete"
	return result, nil
}

// Result returns the last successful analysis.
func (c *Controller) Result() *orchestrator.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Retake stops a running capture, drops the frames and results and starts over
// with a new local session id.
func (c *Controller) Retake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.state = StateIdle
	c.frames = nil
	c.attempts = 0
	c.result = nil
	c.captureErr = nil
	c.localID = newLocalID()
	c.status = "Ready to capture"
}

// Close stops any capture and releases the camera.
func (c *Controller) Close() error {
	c.Retake()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	return err
}

// SessionID returns the client side session id, or the server issued id once
// an analysis has completed.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localID
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a short message describing the current state.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Package capture drives the timed multi-frame capture and hands the frames to
// the analysis orchestrator.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrNoDevice is returned when no frame source is available.
var ErrNoDevice = errors.New("no camera device")

// Stream yields frames from an opened camera.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Camera opens a frame stream.
type Camera interface {
	Name() string
	Open(ctx context.Context) (Stream, error)
}

// FailureKind classifies why a camera could not be opened.
type FailureKind string

const (
	FailurePermission FailureKind = "permission"
	FailureNoDevice   FailureKind = "no-device"
	FailureOther      FailureKind = "other"
)

// CameraFailure is a classified camera error with a message meant for the user.
type CameraFailure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *CameraFailure) Error() string {
	return f.Message
}

func (f *CameraFailure) Unwrap() error {
	return f.Err
}

// ClassifyCameraError maps an error from Camera.Open to a CameraFailure.
// Permission errors win over missing devices when several causes are joined.
func ClassifyCameraError(err error) *CameraFailure {
	if err == nil {
		return nil
	}
	var existing *CameraFailure
	if errors.As(err, &existing) {
		return existing
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return &CameraFailure{
			Kind:    FailurePermission,
			Message: "Camera access was denied. Allow access to the camera and try again.",
			Err:     err,
		}
	case errors.Is(err, ErrNoDevice), errors.Is(err, fs.ErrNotExist):
		return &CameraFailure{
			Kind:    FailureNoDevice,
			Message: "No camera was found. Connect a camera and try again.",
			Err:     err,
		}
	default:
		return &CameraFailure{
			Kind:    FailureOther,
			Message: fmt.Sprintf("Could not start the camera: %v", err),
			Err:     err,
		}
	}
}

// FallbackCamera opens the first camera that succeeds.
type FallbackCamera struct {
	Cameras []Camera
}

func (c *FallbackCamera) Name() string {
	names := make([]string, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		names = append(names, cam.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (c *FallbackCamera) Open(ctx context.Context) (Stream, error) {
	if len(c.Cameras) == 0 {
		return nil, ErrNoDevice
	}
	var errs []error
	for _, cam := range c.Cameras {
		s, err := cam.Open(ctx)
		if err == nil {
			return s, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", cam.Name(), err))
	}
	return nil, errors.Join(errs...)
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// DirectoryCamera replays the images in a directory in name order, looping.
type DirectoryCamera struct {
	Dir string
}

func (c *DirectoryCamera) Name() string {
	return "dir:" + c.Dir
}

func (c *DirectoryCamera) Open(_ context.Context) (Stream, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
		}
		return nil, fmt.Errorf("could not read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(c.Dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrNoDevice, c.Dir)
	}
	return &directoryStream{files: files}, nil
}

type directoryStream struct {
	mu    sync.Mutex
	files []string
	next  int
}

func (s *directoryStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path := s.files[s.next%len(s.files)]
	s.next++
	s.mu.Unlock()

	f, err := os.Open(path) //nolint:gosec // files listed from the configured directory
	if err != nil {
		return nil, fmt.Errorf("could not open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *directoryStream) Close() error {
	return nil
}

// SyntheticCamera produces a moving test pattern. It never fails, which makes it
// the last entry of a FallbackCamera.
type SyntheticCamera struct {
	Width, Height int
}

func (c *SyntheticCamera) Name() string {
	return "synthetic"
}

func (c *SyntheticCamera) Open(_ context.Context) (Stream, error) {
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 320, 240
	}
	return &syntheticStream{width: w, height: h}, nil
}

type syntheticStream struct {
	mu            sync.Mutex
	width, height int
	n             int
}

func (s *syntheticStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	n := s.n
	s.n++
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	bar := (n * s.width / 10) % s.width
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			shade := uint8(x * 255 / s.width)
			if x >= bar && x < bar+s.width/10 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
				continue
			}
			img.Set(x, y, color.RGBA{shade, uint8(y * 255 / s.height), 128, 255})
		}
	}
	return img, nil
}

func (s *syntheticStream) Close() error {
	return nil
}

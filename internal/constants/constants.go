// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture constants
const (
	// FramesPerSession is the number of frames captured before analysis is allowed
	FramesPerSession = 10

	// CaptureInterval is the delay between consecutive frame captures
	CaptureInterval = time.Second

	// MaxCaptureAttempts bounds the number of capture ticks in one cycle so a
	// camera that keeps failing cannot keep the timer running forever
	MaxCaptureAttempts = 3 * FramesPerSession

	// FrameJPEGQuality is the JPEG quality used when encoding captured frames
	FrameJPEGQuality = 80
)

// Image processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to vision models
	MaxImageSize = 800

	// StoredFrameQuality is the JPEG quality used when persisting uploaded frames
	StoredFrameQuality = 90
)

// Session storage constants
const (
	// DefaultSessionDir is the directory used by the file session store
	DefaultSessionDir = "sessions"

	// DefaultSessionTTL is how long Redis keeps session data
	DefaultSessionTTL = 24 * time.Hour

	// DefaultPruneAge is the default age after which `sessions prune` deletes a session
	DefaultPruneAge = 7 * 24 * time.Hour
)

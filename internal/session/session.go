// Package session stores analysis sessions: their metadata, the uploaded frames
// and the analysis result.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/emotion-check/internal/api"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// ErrFrameNotFound is returned when a frame id is unknown within a session.
var ErrFrameNotFound = errors.New("frame not found")

type Status string

const (
	StatusCreated        Status = "created"
	StatusFramesUploaded Status = "frames_uploaded"
	StatusAnalyzed       Status = "analyzed"
)

// Session is the persisted state of one capture cycle.
type Session struct {
	ID                  string      `json:"session_id"`
	CreatedAt           time.Time   `json:"created_at"`
	Status              Status      `json:"status"`
	ClassifierAvailable bool        `json:"classifier_available"`
	FramesCount         int         `json:"frames_count"`
	Frames              []FrameInfo `json:"frames"`
	UploadedAt          *time.Time  `json:"uploaded_at,omitempty"`
	AnalyzedAt          *time.Time  `json:"analyzed_at,omitempty"`
	Analysis            *Analysis   `json:"analysis,omitempty"`
}

// FrameInfo describes a stored frame.
type FrameInfo struct {
	FrameID   int    `json:"frame_id"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
}

// FrameData is a decoded frame ready to be stored.
type FrameData struct {
	FrameID   int
	Timestamp string
	JPEG      []byte
}

// Analysis is the stored outcome of classifying every frame of a session.
type Analysis struct {
	Results            []api.FrameResult  `json:"results"`
	AverageEmotions    map[string]float64 `json:"average_emotions"`
	DominantEmotion    string             `json:"dominant_emotion"`
	TotalFrames        int                `json:"total_frames"`
	SuccessfulAnalyses int                `json:"successful_analyses"`
	ClassifierUsed     bool               `json:"classifier_used"`
	Classifier         string             `json:"classifier"`
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create stores a new session and returns it.
	Create(ctx context.Context, classifierAvailable bool) (*Session, error)
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Session, error)
	// SaveFrames replaces the frames of a session.
	SaveFrames(ctx context.Context, id string, frames []FrameData) ([]FrameInfo, error)
	LoadFrame(ctx context.Context, id string, frameID int) ([]byte, error)
	SaveAnalysis(ctx context.Context, id string, analysis *Analysis) error
	// Prune deletes sessions created before the cutoff and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-", "/", "-", `\`, "-", " ", "_")

// maxTimestampLen bounds the timestamp part of a frame file name.
const maxTimestampLen = 64

// FrameFilename names a stored frame, e.g. frame_01_2024-01-01T10-00-00-000Z.jpg.
// Long timestamps are cut to maxTimestampLen runes.
func FrameFilename(frameID int, timestamp string) string {
	ts := []rune(timestampReplacer.Replace(timestamp))
	if len(ts) > maxTimestampLen {
		ts = ts[:maxTimestampLen]
	}
	return fmt.Sprintf("frame_%02d_%s.jpg", frameID, string(ts))
}

func newFrameInfo(f FrameData) FrameInfo {
	return FrameInfo{
		FrameID:   f.FrameID,
		Filename:  FrameFilename(f.FrameID, f.Timestamp),
		Timestamp: f.Timestamp,
	}
}

// FrameInfos builds the metadata for frames about to be stored.
func FrameInfos(frames []FrameData) []FrameInfo {
	infos := make([]FrameInfo, 0, len(frames))
	for _, f := range frames {
		infos = append(infos, newFrameInfo(f))
	}
	return infos
}

// UsableFrames drops frames without image data, logging each one.
func UsableFrames(sessionID string, frames []FrameData) []FrameData {
	out := make([]FrameData, 0, len(frames))
	for _, f := range frames {
		if len(f.JPEG) == 0 {
			log.Warn().Str("session_id", sessionID).Int("frame", f.FrameID).Msg("skipping empty frame")
			continue
		}
		out = append(out, f)
	}
	return out
}

// markUploaded updates the session after its frames were replaced.
func (s *Session) markUploaded(infos []FrameInfo, now time.Time) {
	s.Frames = infos
	s.FramesCount = len(infos)
	s.Status = StatusFramesUploaded
	s.UploadedAt = &now
	s.Analysis = nil
	s.AnalyzedAt = nil
}

func (s *Session) markAnalyzed(a *Analysis, now time.Time) {
	s.Analysis = a
	s.Status = StatusAnalyzed
	s.AnalyzedAt = &now
}

// ValidID reports whether id is safe to use as a storage key and directory name.
func ValidID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

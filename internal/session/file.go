package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	metadataFile = "session.json"
	lockFile     = ".lock"
	lockRetry    = 10 * time.Millisecond
)

// FileStore keeps every session in its own directory:
//
//	<root>/<id>/session.json
//	<root>/<id>/frame_01_<timestamp>.jpg
//
// Metadata updates hold a file lock on the session directory.
type FileStore struct {
	root string
	now  func() time.Time
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{root: root, now: time.Now}, nil
}

// Root returns the directory holding the sessions.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Create(ctx context.Context, classifierAvailable bool) (*Session, error) {
	sess := &Session{
		ID:                  uuid.New().String(),
		CreatedAt:           s.now().UTC(),
		Status:              StatusCreated,
		ClassifierAvailable: classifierAvailable,
		Frames:              []FrameInfo{},
	}

	if err := os.Mkdir(s.dir(sess.ID), 0o750); err != nil {
		return nil, fmt.Errorf("create session folder: %w", err)
	}
	if err := s.writeMetadata(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	return s.readMetadata(id)
}

// SaveFrames writes the new frames before switching session.json over to them.
// A frame that cannot be written is skipped. Files of the previous upload are
// removed once the new metadata is in place.
func (s *FileStore) SaveFrames(ctx context.Context, id string, frames []FrameData) ([]FrameInfo, error) {
	var infos []FrameInfo
	var stale []FrameInfo
	err := s.update(ctx, id, func(sess *Session) error {
		infos = make([]FrameInfo, 0, len(frames))
		for _, f := range UsableFrames(id, frames) {
			info := newFrameInfo(f)
			if err := os.WriteFile(filepath.Join(s.dir(id), info.Filename), f.JPEG, 0o640); err != nil {
				log.Warn().Err(err).Str("session_id", id).Int("frame", f.FrameID).Msg("skipping frame that could not be written")
				continue
			}
			infos = append(infos, info)
		}
		stale = sess.Frames
		sess.markUploaded(infos, s.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(infos))
	for _, info := range infos {
		kept[info.Filename] = true
	}
	for _, old := range stale {
		if kept[old.Filename] {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir(id), filepath.Base(old.Filename))); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("session_id", id).Str("file", old.Filename).Msg("failed to remove old frame")
		}
	}
	return infos, nil
}

func (s *FileStore) LoadFrame(ctx context.Context, id string, frameID int) ([]byte, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, f := range sess.Frames {
		if f.FrameID != frameID {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir(id), filepath.Base(f.Filename)))
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFrameNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frameID, err)
		}
		return data, nil
	}
	return nil, ErrFrameNotFound
}

func (s *FileStore) SaveAnalysis(ctx context.Context, id string, analysis *Analysis) error {
	return s.update(ctx, id, func(sess *Session) error {
		sess.markAnalyzed(analysis, s.now().UTC())
		return nil
	})
}

func (s *FileStore) Prune(ctx context.Context, before time.Time) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read session directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.IsDir() || !ValidID(e.Name()) {
			continue
		}
		sess, err := s.readMetadata(e.Name())
		if err != nil {
			log.Warn().Err(err).Str("session_id", e.Name()).Msg("skipping unreadable session")
			continue
		}
		if !sess.CreatedAt.Before(before) {
			continue
		}
		if err := os.RemoveAll(s.dir(sess.ID)); err != nil {
			return removed, fmt.Errorf("remove session %s: %w", sess.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) dir(id string) string {
	return filepath.Join(s.root, id)
}

// update runs fn on the session while holding the directory lock and writes the result back.
func (s *FileStore) update(ctx context.Context, id string, fn func(*Session) error) error {
	if !ValidID(id) {
		return ErrNotFound
	}
	if _, err := os.Stat(s.dir(id)); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}

	lock := flock.New(filepath.Join(s.dir(id), lockFile))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", id, err)
	}
	if !locked {
		return fmt.Errorf("lock session %s: not acquired", id)
	}
	defer lock.Unlock()

	sess, err := s.readMetadata(id)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	return s.writeMetadata(sess)
}

func (s *FileStore) readMetadata(id string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(id), metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session metadata: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session metadata: %w", err)
	}
	return &sess, nil
}

// writeMetadata replaces session.json atomically.
func (s *FileStore) writeMetadata(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir(sess.ID), metadataFile+".*")
	if err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir(sess.ID), metadataFile)); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	return nil
}


package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/emotion-check/internal/session"
)

// SessionRepository provides PostgreSQL-backed analysis session storage
type SessionRepository struct {
	pool *Pool
}

var _ session.Store = (*SessionRepository)(nil)

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const selectSession = `
	SELECT id, created_at, status, classifier_available, frames, uploaded_at, analyzed_at, analysis
	FROM analysis_sessions
	WHERE id = $1
`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, classifierAvailable bool) (*session.Session, error) {
	s := &session.Session{
		ID:                  uuid.New().String(),
		CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
		Status:              session.StatusCreated,
		ClassifierAvailable: classifierAvailable,
		Frames:              []session.FrameInfo{},
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO analysis_sessions (id, created_at, status, classifier_available)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.CreatedAt, string(s.Status), s.ClassifierAvailable)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	if !session.ValidID(id) {
		return nil, session.ErrNotFound
	}
	return scanSession(r.pool.QueryRow(ctx, selectSession, id))
}

// SaveFrames replaces the frames of a session in one transaction. A frame whose
// insert fails is rolled back to its savepoint and skipped.
func (r *SessionRepository) SaveFrames(ctx context.Context, id string, frames []session.FrameData) ([]session.FrameInfo, error) {
	if !session.ValidID(id) {
		return nil, session.ErrNotFound
	}

	var infos []session.FrameInfo
	err := r.withSession(ctx, id, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM session_frames WHERE session_id = $1", id); err != nil {
			return fmt.Errorf("delete frames: %w", err)
		}

		infos = make([]session.FrameInfo, 0, len(frames))
		for _, f := range session.UsableFrames(id, frames) {
			info := session.FrameInfos([]session.FrameData{f})[0]
			ok, err := insertFrame(ctx, tx, id, info, f.JPEG)
			if err != nil {
				return err
			}
			if ok {
				infos = append(infos, info)
			}
		}

		framesJSON, err := json.Marshal(infos)
		if err != nil {
			return fmt.Errorf("marshal frames: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE analysis_sessions
			SET status = $2, frames = $3, uploaded_at = NOW(), analyzed_at = NULL, analysis = NULL
			WHERE id = $1
		`, id, string(session.StatusFramesUploaded), framesJSON)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// insertFrame stores one frame behind a savepoint. It reports false when the
// frame was rejected and the transaction is still usable.
func insertFrame(ctx context.Context, tx *sql.Tx, id string, info session.FrameInfo, data []byte) (bool, error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT frame_insert"); err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_frames (session_id, frame_id, filename, captured_at, data)
		VALUES ($1, $2, $3, $4, $5)
	`, id, info.FrameID, info.Filename, info.Timestamp, data)
	if err != nil {
		log.Warn().Err(err).Str("session_id", id).Int("frame", info.FrameID).Msg("skipping frame that could not be stored")
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT frame_insert"); rbErr != nil {
			return false, fmt.Errorf("rollback frame %d: %w", info.FrameID, rbErr)
		}
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT frame_insert"); err != nil {
		return false, fmt.Errorf("release savepoint: %w", err)
	}
	return true, nil
}

// LoadFrame returns the JPEG bytes of one stored frame
func (r *SessionRepository) LoadFrame(ctx context.Context, id string, frameID int) ([]byte, error) {
	if !session.ValidID(id) {
		return nil, session.ErrNotFound
	}

	var data []byte
	err := r.pool.QueryRow(ctx,
		"SELECT data FROM session_frames WHERE session_id = $1 AND frame_id = $2", id, frameID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, session.ErrFrameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load frame: %w", err)
	}
	return data, nil
}

// SaveAnalysis stores the analysis result and marks the session analyzed
func (r *SessionRepository) SaveAnalysis(ctx context.Context, id string, analysis *session.Analysis) error {
	if !session.ValidID(id) {
		return session.ErrNotFound
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE analysis_sessions
		SET status = $2, analysis = $3, analyzed_at = NOW()
		WHERE id = $1
	`, id, string(session.StatusAnalyzed), data)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if count == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Prune removes sessions created before the cutoff; frames cascade
func (r *SessionRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM analysis_sessions WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return int(count), nil
}

// withSession runs fn in a transaction holding a row lock on the session.
func (r *SessionRepository) withSession(ctx context.Context, id string, fn func(*sql.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var locked string
	err = tx.QueryRowContext(ctx, "SELECT id FROM analysis_sessions WHERE id = $1 FOR UPDATE", id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		tx.Rollback()
		return session.ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("lock session: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		s          session.Session
		status     string
		frames     []byte
		uploadedAt sql.NullTime
		analyzedAt sql.NullTime
		analysis   []byte
	)
	err := row.Scan(&s.ID, &s.CreatedAt, &status, &s.ClassifierAvailable, &frames, &uploadedAt, &analyzedAt, &analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.Status = session.Status(status)
	if err := json.Unmarshal(frames, &s.Frames); err != nil {
		return nil, fmt.Errorf("parse frames: %w", err)
	}
	s.FramesCount = len(s.Frames)
	if uploadedAt.Valid {
		s.UploadedAt = &uploadedAt.Time
	}
	if analyzedAt.Valid {
		s.AnalyzedAt = &analyzedAt.Time
	}
	if len(analysis) > 0 {
		var a session.Analysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, fmt.Errorf("parse analysis: %w", err)
		}
		s.Analysis = &a
	}
	return &s, nil
}

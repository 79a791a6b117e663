package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kozaktomas/emotion-check/internal/constants"
)

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// maxTxRetries bounds optimistic transaction retries on concurrent updates.
const maxTxRetries = 5

// RedisStore keeps session metadata as JSON and frames in a hash, both expiring
// after the configured TTL. A sorted set indexes sessions by creation time for Prune.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long sessions are kept. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "emotion-check".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis backed session store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    constants.DefaultSessionTTL,
		prefix: "emotion-check",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Create(ctx context.Context, classifierAvailable bool) (*Session, error) {
	sess := &Session{
		ID:                  uuid.New().String(),
		CreatedAt:           s.now().UTC(),
		Status:              StatusCreated,
		ClassifierAvailable: classifierAvailable,
		Frames:              []FrameInfo{},
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(sess.CreatedAt.Unix()), Member: sess.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	return s.load(ctx, s.client, id)
}

func (s *RedisStore) SaveFrames(ctx context.Context, id string, frames []FrameData) ([]FrameInfo, error) {
	frames = UsableFrames(id, frames)
	infos := FrameInfos(frames)
	err := s.update(ctx, id, func(sess *Session, pipe redis.Pipeliner) {
		sess.markUploaded(infos, s.now().UTC())

		framesKey := s.framesKey(id)
		pipe.Del(ctx, framesKey)
		if len(frames) == 0 {
			return
		}
		values := make([]any, 0, 2*len(frames))
		for _, f := range frames {
			values = append(values, strconv.Itoa(f.FrameID), f.JPEG)
		}
		pipe.HSet(ctx, framesKey, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, framesKey, s.ttl)
		}
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

func (s *RedisStore) LoadFrame(ctx context.Context, id string, frameID int) ([]byte, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	data, err := s.client.HGet(ctx, s.framesKey(id), strconv.Itoa(frameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrFrameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget failed: %w", err)
	}
	return data, nil
}

func (s *RedisStore) SaveAnalysis(ctx context.Context, id string, analysis *Analysis) error {
	return s.update(ctx, id, func(sess *Session, _ redis.Pipeliner) {
		sess.markAnalyzed(analysis, s.now().UTC())
	})
}

func (s *RedisStore) Prune(ctx context.Context, before time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrangebyscore failed: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	deleted := make([]*redis.IntCmd, 0, len(ids))
	for _, id := range ids {
		deleted = append(deleted, pipe.Del(ctx, s.sessionKey(id)))
		pipe.Del(ctx, s.framesKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline failed: %w", err)
	}

	// sessions that already expired only leave an index entry behind
	removed := 0
	for _, cmd := range deleted {
		removed += int(cmd.Val())
	}
	return removed, nil
}

// update applies fn to the stored session inside an optimistic transaction.
// fn may queue additional commands on the pipeline.
func (s *RedisStore) update(ctx context.Context, id string, fn func(*Session, redis.Pipeliner)) error {
	if !ValidID(id) {
		return ErrNotFound
	}
	key := s.sessionKey(id)

	txf := func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fn(sess, pipe)
			data, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("failed to marshal session: %w", err)
			}
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("session %s: too many concurrent updates", id)
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*Session, error) {
	data, err := c.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *RedisStore) framesKey(id string) string {
	return s.prefix + ":session:" + id + ":frames"
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":sessions"
}

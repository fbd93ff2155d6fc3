package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// SessionStore persists server-side session and refresh records. Keys are
// token hashes; records expire with their tokens.
type SessionStore interface {
	SaveSession(ctx context.Context, hash string, s *models.Session) error
	GetSession(ctx context.Context, hash string) (*models.Session, error)
	DeleteSession(ctx context.Context, hash string) error
	SaveRefresh(ctx context.Context, hash string, g *models.RefreshGrant) error
	// TakeRefresh removes and returns a refresh grant in one step, so a
	// grant can be redeemed at most once.
	TakeRefresh(ctx context.Context, hash string) (*models.RefreshGrant, error)
	DeleteRefresh(ctx context.Context, hash string) error
}

const (
	sessionKeyPrefix = "session:"
	refreshKeyPrefix = "refresh:"
)

type redisSessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client redis.Cmdable) SessionStore {
	return &redisSessionStore{client: client, now: time.Now}
}

func (s *redisSessionStore) put(ctx context.Context, key string, v any, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("record %s already expired", key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// get decodes the record at key into v. Returns false if the key is absent.
func (s *redisSessionStore) get(ctx context.Context, key string, v any) (bool, error) {
	return decode(key, s.client.Get(ctx, key), v)
}

func decode(key string, cmd *redis.StringCmd, v any) (bool, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveSession stores a session until its expiry.
func (s *redisSessionStore) SaveSession(ctx context.Context, hash string, sess *models.Session) error {
	return s.put(ctx, sessionKeyPrefix+hash, sess, sess.ExpiresAt)
}

// GetSession returns the session for a token hash, or nil if none exists.
func (s *redisSessionStore) GetSession(ctx context.Context, hash string) (*models.Session, error) {
	var sess models.Session
	ok, err := s.get(ctx, sessionKeyPrefix+hash, &sess)
	if !ok || err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *redisSessionStore) DeleteSession(ctx context.Context, hash string) error {
	return s.client.Del(ctx, sessionKeyPrefix+hash).Err()
}

// SaveRefresh stores a refresh grant until its expiry.
func (s *redisSessionStore) SaveRefresh(ctx context.Context, hash string, g *models.RefreshGrant) error {
	return s.put(ctx, refreshKeyPrefix+hash, g, g.ExpiresAt)
}

// TakeRefresh deletes and returns the refresh grant for a token hash, or nil
// if none exists.
func (s *redisSessionStore) TakeRefresh(ctx context.Context, hash string) (*models.RefreshGrant, error) {
	key := refreshKeyPrefix + hash
	var g models.RefreshGrant
	ok, err := decode(key, s.client.GetDel(ctx, key), &g)
	if !ok || err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteRefresh removes a refresh grant.
func (s *redisSessionStore) DeleteRefresh(ctx context.Context, hash string) error {
	return s.client.Del(ctx, refreshKeyPrefix+hash).Err()
}

var _ SessionStore = (*redisSessionStore)(nil)

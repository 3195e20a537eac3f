// Package redis keeps login sessions in Redis, letting key TTLs do the expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	goredis "github.com/go-redis/redis/v8"

	"creditledger/internal/sessions"
)

const keyPrefix = "creditledger:sess:"

var _ sessions.Store = (*Store)(nil)

type record struct {
	Authenticated bool      `json:"isAuthenticated"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type Store struct {
	client *goredis.Client
	now    func() time.Time
}

// Dial parses a redis:// URL and checks the server is reachable.
// Commands are traced with OpenTelemetry.
func Dial(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client), nil
}

func New(client *goredis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func key(id string) string { return keyPrefix + id }

func (s *Store) Create(ctx context.Context, sess sessions.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already expired: nothing a later Get could return.
		return nil
	}
	data, err := json.Marshal(record{Authenticated: sess.Authenticated, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (sessions.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return sessions.Session{}, sessions.ErrNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("load session: %w", err)
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return sessions.Session{}, fmt.Errorf("decode session: %w", err)
	}
	sess := sessions.Session{ID: id, Authenticated: r.Authenticated, CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt}
	if sess.Expired(s.now()) {
		return sessions.Session{}, sessions.ErrNotFound
	}
	return sess, nil
}

func (s *Store) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, id)
	}
	data, err := json.Marshal(record{Authenticated: sess.Authenticated, CreatedAt: sess.CreatedAt, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, key(id), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return sessions.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys by itself.
func (s *Store) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

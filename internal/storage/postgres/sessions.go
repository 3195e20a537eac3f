package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"creditledger/internal/sessions"
)

var _ sessions.Store = (*SessionRepository)(nil)

// sessionData is the JSONB payload of a user_sessions row.
type sessionData struct {
	IsAuthenticated bool `json:"isAuthenticated"`
}

type SessionRepository struct {
	repo *Repository
	now  func() time.Time
}

func (r *Repository) Sessions() *SessionRepository {
	return &SessionRepository{repo: r, now: time.Now}
}

func (s *SessionRepository) Create(ctx context.Context, sess sessions.Session) error {
	data, err := json.Marshal(sessionData{IsAuthenticated: sess.Authenticated})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.repo.pool.Exec(ctx, `
		INSERT INTO user_sessions (sid, sess, created_at, expire) VALUES ($1, $2, $3, $4)
		ON CONFLICT (sid) DO UPDATE SET sess = EXCLUDED.sess, expire = EXCLUDED.expire`,
		sess.ID, data, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionRepository) Get(ctx context.Context, id string) (sessions.Session, error) {
	var (
		sess sessions.Session
		data []byte
	)
	err := s.repo.pool.QueryRow(ctx,
		`SELECT sid, sess, created_at, expire FROM user_sessions WHERE sid = $1 AND expire > $2`,
		id, s.now()).Scan(&sess.ID, &data, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sessions.Session{}, sessions.ErrNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("load session: %w", err)
	}
	var payload sessionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return sessions.Session{}, fmt.Errorf("decode session: %w", err)
	}
	sess.Authenticated = payload.IsAuthenticated
	return sess, nil
}

func (s *SessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	tag, err := s.repo.pool.Exec(ctx,
		`UPDATE user_sessions SET expire = $2 WHERE sid = $1 AND expire > $3`, id, expiresAt, s.now())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

func (s *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.pool.Exec(ctx, `DELETE FROM user_sessions WHERE sid = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.repo.pool.Exec(ctx, `DELETE FROM user_sessions WHERE expire <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creditledger/internal/sessions"
)

var _ sessions.Store = (*SessionRepository)(nil)

// SessionRepository stores login sessions in the same SQLite file as the credits.
// Times are unix milliseconds.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func (r *SQLiteRepository) Sessions() *SessionRepository {
	return &SessionRepository{db: r.db, now: r.now}
}

func (s *SessionRepository) Create(ctx context.Context, sess sessions.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (sid, authenticated, created_at, expire) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sid) DO UPDATE SET authenticated = excluded.authenticated, expire = excluded.expire`,
		sess.ID, sess.Authenticated, sess.CreatedAt.UnixMilli(), sess.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionRepository) Get(ctx context.Context, id string) (sessions.Session, error) {
	var (
		sess            sessions.Session
		created, expire int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sid, authenticated, created_at, expire FROM user_sessions WHERE sid = ? AND expire > ?`,
		id, s.now().UnixMilli()).Scan(&sess.ID, &sess.Authenticated, &created, &expire)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("load session: %w", err)
	}
	sess.CreatedAt = time.UnixMilli(created).UTC()
	sess.ExpiresAt = time.UnixMilli(expire).UTC()
	return sess, nil
}

func (s *SessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET expire = ? WHERE sid = ? AND expire > ?`,
		expiresAt.UnixMilli(), id, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

func (s *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE sid = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expire <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

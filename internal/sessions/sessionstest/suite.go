// Package sessionstest holds the behaviour every sessions.Store backend must share.
package sessionstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"creditledger/internal/sessions"
)

// Run exercises the Store contract. Backends call it from their own tests.
func Run(t *testing.T, newStore func(t *testing.T) sessions.Store) {
	t.Helper()

	t.Run("CreateGetDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)
		in := sessions.Session{ID: "sid-1", Authenticated: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		if err := s.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.Get(ctx, "sid-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.Authenticated || got.ID != in.ID {
			t.Fatalf("unexpected session: %+v", got)
		}
		if d := got.ExpiresAt.Sub(in.ExpiresAt); d > time.Second || d < -time.Second {
			t.Fatalf("expiry drifted: got %v want %v", got.ExpiresAt, in.ExpiresAt)
		}
		if err := s.Delete(ctx, "sid-1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Get(ctx, "sid-1"); !errors.Is(err, sessions.ErrNotFound) {
			t.Fatalf("expected sessions.ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(ctx, "sid-1"); err != nil {
			t.Fatalf("deleting a missing session must not fail: %v", err)
		}
	})

	t.Run("UnknownSession", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, sessions.ErrNotFound) {
			t.Fatalf("expected sessions.ErrNotFound, got %v", err)
		}
		if err := s.Touch(context.Background(), "nope", time.Now().Add(time.Hour)); !errors.Is(err, sessions.ErrNotFound) {
			t.Fatalf("touch unknown: expected sessions.ErrNotFound, got %v", err)
		}
	})

	t.Run("ExpiredIsInvisible", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		past := time.Now().Add(-time.Hour).UTC()
		if err := s.Create(ctx, sessions.Session{ID: "old", Authenticated: true, CreatedAt: past.Add(-time.Hour), ExpiresAt: past}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := s.Get(ctx, "old"); !errors.Is(err, sessions.ErrNotFound) {
			t.Fatalf("expected expired session to be hidden, got %v", err)
		}
	})

	t.Run("TouchExtends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()
		if err := s.Create(ctx, sessions.Session{ID: "live", Authenticated: true, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
			t.Fatalf("create: %v", err)
		}
		later := now.Add(48 * time.Hour)
		if err := s.Touch(ctx, "live", later); err != nil {
			t.Fatalf("touch: %v", err)
		}
		got, err := s.Get(ctx, "live")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ExpiresAt.Before(now.Add(47 * time.Hour)) {
			t.Fatalf("expiry not extended: %v", got.ExpiresAt)
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()
		_ = s.Create(ctx, sessions.Session{ID: "a", Authenticated: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
		_ = s.Create(ctx, sessions.Session{ID: "b", Authenticated: true, CreatedAt: now, ExpiresAt: now.Add(2 * time.Hour)})
		if _, err := s.DeleteExpired(ctx, now.Add(90*time.Minute)); err != nil {
			t.Fatalf("delete expired: %v", err)
		}
		// "b" must survive the purge; "a" is gone either way once its expiry passes.
		if _, err := s.Get(ctx, "b"); err != nil {
			t.Fatalf("live session purged: %v", err)
		}
	})
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"creditledger/internal/sessions"
)

// SessionGate authenticates with server-side sessions. Every authorized request
// slides the expiry forward, so the session dies after a week of inactivity.
type SessionGate struct {
	verifier *PasswordVerifier
	store    sessions.Store
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

func NewSessionGate(verifier *PasswordVerifier, store sessions.Store) *SessionGate {
	return &SessionGate{
		verifier: verifier,
		store:    store,
		ttl:      SessionTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (g *SessionGate) Mode() Mode { return ModeSession }

func (g *SessionGate) TTL() time.Duration { return g.ttl }

func (g *SessionGate) Login(ctx context.Context, password string) (Proof, error) {
	if !g.verifier.Verify(password) {
		return Proof{}, ErrInvalidPassword
	}
	now := g.now().UTC()
	s := sessions.Session{
		ID:            g.newID(),
		Authenticated: true,
		CreatedAt:     now,
		ExpiresAt:     now.Add(g.ttl),
	}
	if err := g.store.Create(ctx, s); err != nil {
		return Proof{}, fmt.Errorf("create session: %w", err)
	}
	return Proof{Value: s.ID, ExpiresAt: s.ExpiresAt}, nil
}

func (g *SessionGate) Authorize(ctx context.Context, proof string) (Principal, error) {
	if proof == "" {
		return Principal{}, unauthorized("no session cookie")
	}
	s, err := g.store.Get(ctx, proof)
	if errors.Is(err, sessions.ErrNotFound) {
		return Principal{}, unauthorized("unknown or expired session")
	}
	if err != nil {
		return Principal{}, fmt.Errorf("load session: %w", err)
	}
	if !s.Authenticated {
		return Principal{}, unauthorized("session not authenticated")
	}

	expires := g.now().UTC().Add(g.ttl)
	if err := g.store.Touch(ctx, s.ID, expires); err != nil {
		// The request is still authorized; only the sliding window failed to move.
		slog.WarnContext(ctx, "Failed to extend session", "error", err)
		expires = s.ExpiresAt
	}
	return Principal{Authenticated: true, ExpiresAt: expires}, nil
}

func (g *SessionGate) Logout(ctx context.Context, proof string) error {
	if proof == "" {
		return nil
	}
	if err := g.store.Delete(ctx, proof); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

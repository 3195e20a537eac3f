// Package auth guards the ledger behind a single shared password. Exactly one
// Gate is active per process: server-side sessions or signed bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditledger/internal/config"
	"creditledger/internal/core"
	"creditledger/internal/sessions"
)

type Mode string

const (
	ModeSession Mode = "session"
	ModeToken   Mode = "token"
)

const (
	SessionTTL = 7 * 24 * time.Hour
	TokenTTL   = 14 * 24 * time.Hour
)

// ErrInvalidPassword is returned by Login. Authorize failures are core.ErrUnauthorized.
var ErrInvalidPassword = errors.New("invalid password")

// Proof is what a client presents on later requests: a session id or a signed token.
type Proof struct {
	Value     string
	ExpiresAt time.Time
}

// Principal is the caller behind an accepted proof.
type Principal struct {
	Authenticated bool
	ExpiresAt     time.Time
}

type Gate interface {
	Mode() Mode
	Login(ctx context.Context, password string) (Proof, error)
	Authorize(ctx context.Context, proof string) (Principal, error)
	Logout(ctx context.Context, proof string) error
}

// New builds the gate selected by cfg.AuthMode. store is only used in session mode.
func New(cfg *config.Config, store sessions.Store) (Gate, error) {
	verifier, err := NewPasswordVerifier(cfg.AppPassword, cfg.AppPasswordHash)
	if err != nil {
		return nil, err
	}
	switch Mode(cfg.AuthMode) {
	case ModeSession:
		if store == nil {
			return nil, errors.New("session auth requires a session store")
		}
		return NewSessionGate(verifier, store), nil
	case ModeToken:
		return NewTokenGate(verifier, []byte(cfg.JWTSecret))
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

func unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", core.ErrUnauthorized, reason)
}

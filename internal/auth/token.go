package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenClaims struct {
	Authenticated bool `json:"authenticated"`
	jwt.RegisteredClaims
}

// TokenGate issues stateless HS256 bearer tokens. Logout cannot revoke them;
// they stay valid until they expire.
type TokenGate struct {
	verifier *PasswordVerifier
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenGate(verifier *PasswordVerifier, secret []byte) (*TokenGate, error) {
	if len(secret) == 0 {
		return nil, errors.New("token auth requires a signing secret")
	}
	return &TokenGate{verifier: verifier, secret: secret, ttl: TokenTTL, now: time.Now}, nil
}

func (g *TokenGate) Mode() Mode { return ModeToken }

func (g *TokenGate) Login(_ context.Context, password string) (Proof, error) {
	if !g.verifier.Verify(password) {
		return Proof{}, ErrInvalidPassword
	}
	now := g.now().UTC()
	expires := now.Add(g.ttl)
	claims := tokenClaims{
		Authenticated: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return Proof{}, fmt.Errorf("sign token: %w", err)
	}
	return Proof{Value: signed, ExpiresAt: expires.Truncate(time.Second)}, nil
}

func (g *TokenGate) Authorize(_ context.Context, proof string) (Principal, error) {
	if proof == "" {
		return Principal{}, unauthorized("no bearer token")
	}
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(proof, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		return Principal{}, unauthorized("invalid token")
	}
	if !claims.Authenticated {
		return Principal{}, unauthorized("token not authenticated")
	}
	return Principal{Authenticated: true, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (g *TokenGate) Logout(context.Context, string) error {
	return nil
}

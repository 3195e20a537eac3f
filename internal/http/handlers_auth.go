package http

import (
	"errors"
	"net/http"
	"time"

	"creditledger/internal/auth"
	"creditledger/internal/core"
	applog "creditledger/internal/log"
)

// SessionCookieName carries the session id in session mode.
const SessionCookieName = "sid"

type loginResponse struct {
	Message   string     `json:"message"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// proof returns the credential the active gate expects: the session cookie
// or the bearer token.
func (s *Server) proof(r *http.Request) string {
	if s.gate.Mode() == auth.ModeSession {
		c, err := r.Cookie(SessionCookieName)
		if err != nil {
			return ""
		}
		return c.Value
	}
	return bearerToken(r)
}

func (s *Server) sessionCookie(value string, expiresAt time.Time) *http.Cookie {
	maxAge := int(time.Until(expiresAt).Round(time.Second) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// requireAuth rejects unauthenticated requests before anything reads the body.
// In session mode the cookie lifetime follows the slid session expiry.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proof := s.proof(r)
		principal, err := s.gate.Authorize(r.Context(), proof)
		if err != nil {
			if !errors.Is(err, core.ErrUnauthorized) {
				s.events.LogError(r.Context(), "Authorization failed", err, applog.ComponentAuth, "authorize")
				InternalServerError().Write(w)
				return
			}
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
				applog.FieldPath, r.URL.Path, applog.FieldError, err)
			UnauthorizedError("Not authenticated").Write(w)
			return
		}
		if s.gate.Mode() == auth.ModeSession && !principal.ExpiresAt.IsZero() {
			http.SetCookie(w, s.sessionCookie(proof, principal.ExpiresAt))
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	raw, err := ParseJSONObject(w, r)
	if err != nil {
		bodyErrorResponse(err).Write(w)
		return
	}
	password, ok := raw["password"].(string)
	if !ok || password == "" {
		ValidationErrorResponse([]core.FieldError{{Field: "password", Message: "Password is required"}}).Write(w)
		return
	}

	proof, err := s.gate.Login(r.Context(), password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.events.LogAuth(r.Context(), applog.OpLogin, false, s.detector.ExtractClientIP(r))
			UnauthorizedError("Invalid password").Write(w)
			return
		}
		s.events.LogError(r.Context(), "Login could not be completed", err, applog.ComponentAuth, applog.OpLogin)
		InternalServerError().Write(w)
		return
	}

	s.events.LogAuth(r.Context(), applog.OpLogin, true, s.detector.ExtractClientIP(r))

	resp := NewJSONResponse()
	body := loginResponse{Message: "Login successful"}
	if s.gate.Mode() == auth.ModeSession {
		resp.Cookie(s.sessionCookie(proof.Value, proof.ExpiresAt))
	} else {
		expiresAt := proof.ExpiresAt.UTC()
		body.Token = proof.Value
		body.ExpiresAt = &expiresAt
	}
	resp.Body(body).Write(w)
}

// handleLogout ends the session, if any. It succeeds without a valid proof.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if proof := s.proof(r); proof != "" {
		if err := s.gate.Logout(r.Context(), proof); err != nil {
			s.events.LogError(r.Context(), "Logout failed", err, applog.ComponentAuth, applog.OpLogout)
			InternalServerError().Write(w)
			return
		}
		s.events.LogAuth(r.Context(), applog.OpLogout, true, s.detector.ExtractClientIP(r))
	}
	resp := NewJSONResponse().Body(loginResponse{Message: "Logged out"})
	if s.gate.Mode() == auth.ModeSession {
		resp.Cookie(s.sessionCookie("", time.Time{}))
	}
	resp.Write(w)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]bool{"isAuthenticated": true}).Write(w)
}

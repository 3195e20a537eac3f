package http

import (
	"net/http"
	"strings"
)

// methodHandlers dispatches on the request method; anything else is a JSON 405.
type methodHandlers map[string]http.HandlerFunc

func (m methodHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	MethodNotAllowedError(m.allowed()...).Write(w)
}

func (m methodHandlers) allowed() []string {
	order := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	var out []string
	for _, method := range order {
		if _, ok := m[method]; ok {
			out = append(out, method)
		}
	}
	return out
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

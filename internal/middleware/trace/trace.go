// Package trace tags each request with an id and logs its outcome.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "creditledger/internal/log"
)

// RequestIDHeader is honoured on the way in when well formed and always set
// on the way out.
const RequestIDHeader = "X-Request-ID"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type requestIDKey struct{}

// WithRequestID stores id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestID returns a fresh "req_"-prefixed id.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// Counts are request totals by response class since start.
type Counts struct {
	Total       int64
	ClientError int64
	ServerError int64
}

type Middleware struct {
	clientIP func(*http.Request) string
	events   *applog.StructuredLogger

	total, client4xx, server5xx atomic.Int64
}

// NewMiddleware logs through logger; clientIP may be nil.
func NewMiddleware(clientIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Middleware{clientIP: clientIP, events: applog.NewStructuredLogger(logger)}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(WithRequestID(r.Context(), id))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.Status()

		m.total.Add(1)
		switch {
		case status >= 500:
			m.server5xx.Add(1)
		case status >= 400:
			m.client4xx.Add(1)
		}

		ip := ""
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}
		m.events.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), ip)
	})
}

func (m *Middleware) Counts() Counts {
	return Counts{
		Total:       m.total.Load(),
		ClientError: m.client4xx.Load(),
		ServerError: m.server5xx.Load(),
	}
}

// statusRecorder remembers the first status written. A handler that writes
// a body without a header has implicitly sent 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
